// Package logger wires logrus with a terminal-aware trace.TextFormatter and
// a context-scoped *log.Entry, the same pattern used throughout this
// family of tools.
package logger

import (
	"context"
	"os"
	"strings"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Config controls output destination and severity, loaded from the actor's
// TOML configuration.
type Config struct {
	Output   string `toml:"output"`
	Severity string `toml:"severity"`
}

type loggerKey struct{}

// Init sets up a sane default logger before the configuration file has been
// read.
func Init() {
	log.SetFormatter(&trace.TextFormatter{
		DisableTimestamp: true,
		EnableColors:     trace.IsTerminal(os.Stderr),
		ComponentPadding: 1,
	})
	log.SetOutput(os.Stderr)
}

// Setup reconfigures the standard logger's output and severity once conf
// has been loaded.
func Setup(conf Config) error {
	switch conf.Output {
	case "", "stderr", "error", "2":
		log.SetOutput(os.Stderr)
	case "stdout", "out", "1":
		log.SetOutput(os.Stdout)
	default:
		logFile, err := os.OpenFile(conf.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return trace.Wrap(err, "failed to open the log file")
		}
		log.SetOutput(logFile)
	}

	switch strings.ToLower(conf.Severity) {
	case "", "info":
		log.SetLevel(log.InfoLevel)
	case "err", "error":
		log.SetLevel(log.ErrorLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	default:
		return trace.BadParameter("unsupported logger severity: %q", conf.Severity)
	}
	return nil
}

// With attaches entry to ctx so that Get returns it downstream.
func With(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// WithField attaches key/value to the logger carried by ctx and returns the
// resulting context and entry.
func WithField(ctx context.Context, key string, value interface{}) (context.Context, *log.Entry) {
	entry := Get(ctx).WithField(key, value)
	return With(ctx, entry), entry
}

// WithFields is the multi-field form of WithField.
func WithFields(ctx context.Context, fields log.Fields) (context.Context, *log.Entry) {
	entry := Get(ctx).WithFields(fields)
	return With(ctx, entry), entry
}

// Get returns the logger carried by ctx, or the standard logger's root
// entry if none was attached.
func Get(ctx context.Context) *log.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*log.Entry); ok && entry != nil {
		return entry
	}
	return log.NewEntry(log.StandardLogger())
}
