/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package localserver is the actor's local TLS surface: a public,
// token-gated set of routes the broker calls, and a private,
// loopback-only set of routes the user-space client calls, including the
// WebSocket. Adapted from utils/http.go's HTTP wrapper and
// access/webhooks/callback_server.go's route/handler shape.
package localserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"

	log "github.com/sirupsen/logrus"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/certs"
	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/job"
	"github.com/gravitational/uds-actor/internal/router"
)

// Version is embedded in the "information" route's response and the
// Server response header; set by cmd/uds-actor at startup.
var Version = "dev"

// Server is the actor's local HTTPS listener.
type Server struct {
	router        *router.Router
	ownAuthToken  string
	actorKind     string
	storedToken   string
	httpServer    http.Server
	routerHandler *httprouter.Router
}

// Config configures a new Server.
type Config struct {
	Listen       string
	OwnAuthToken string
	ActorKind    string
	StoredToken  string
}

// New builds a Server bound to cfg.Listen, serving TLS with cert.
func New(cfg Config, cert tls.Certificate, r *router.Router) *Server {
	rh := httprouter.New()

	s := &Server{
		router:        r,
		ownAuthToken:  cfg.OwnAuthToken,
		actorKind:     cfg.ActorKind,
		storedToken:   cfg.StoredToken,
		routerHandler: rh,
	}

	s.registerPublicRoutes(rh)
	s.registerPrivateRoutes(rh)
	rh.GET("/", s.handleRoot)

	s.httpServer = http.Server{
		Addr:      cfg.Listen,
		Handler:   serverHeaderMiddleware(rh),
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}
	return s
}

func serverHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "UDSActor/"+Version)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprintf(w, "UDS Actor v%s", Version)
}

// DoJob runs the server until ctx is stopped, satisfying job.Job.
func (s *Server) DoJob(ctx context.Context) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }
	go func() {
		select {
		case <-job.Stopped(ctx):
		case <-ctx.Done():
		}
		s.httpServer.Close()
	}()

	log.Infof("starting local HTTPS server on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServeTLS("", "")
	if err == http.ErrServerClosed {
		return nil
	}
	return trace.Wrap(err)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeListener serves TLS over an already-bound listener, for tests that
// need a known ephemeral port rather than the fixed consts.ListenPort.
func (s *Server) ServeListener(lis net.Listener) error {
	tlsListener := tls.NewListener(lis, s.httpServer.TLSConfig)
	err := s.httpServer.Serve(tlsListener)
	if err == http.ErrServerClosed {
		return nil
	}
	return trace.Wrap(err)
}

// EnsureCert is a placeholder matching utils.HTTP.EnsureCert's shape —
// this server never falls back to a self-signed cert because the broker
// is the sole certificate authority for it (see certs.Info.ToTLSCertificate),
// so there is nothing to "ensure".
func EnsureCert(info certs.Info) (tls.Certificate, error) {
	if info.IsZero() {
		return tls.Certificate{}, trace.BadParameter("no certificate material from the broker")
	}
	return info.ToTLSCertificate()
}

// ListenAddr is the fixed local address the server binds, per consts.ListenPort.
func ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", consts.ListenPort)
}
