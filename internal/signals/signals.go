package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Terminable is anything that can be shut down gracefully or closed outright.
// The actor's lifecycle satisfies it via its Process.
type Terminable interface {
	Shutdown(context.Context) error
	Close()
}

// Serve blocks, translating SIGTERM into a graceful shutdown and SIGINT into
// a graceful shutdown on first receipt, a fast one on the second.
func Serve(app Terminable, shutdownTimeout time.Duration) {
	ctx := context.Background()
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigC)

	graceful := func() {
		tctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		log.Info("received shutdown signal, attempting graceful teardown")
		if err := app.Shutdown(tctx); err != nil {
			log.Warn("graceful teardown did not complete in time, forcing close")
			app.Close()
		}
	}

	var interrupted bool
	for sig := range sigC {
		switch sig {
		case syscall.SIGTERM:
			graceful()
			return
		case syscall.SIGINT:
			if interrupted {
				app.Close()
				return
			}
			interrupted = true
			go graceful()
		}
	}
}
