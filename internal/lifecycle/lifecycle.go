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

// Package lifecycle drives the actor through its whole observable life:
// Boot, AwaitNetwork, Initialize, Configure, NotifyReady, Serving, and
// Teardown. Grounded on access/webhooks/app.go's App (NewApp, mainJob,
// SpawnCriticalJob, WaitReady, Run), generalized from one watcher plus one
// callback server into this state machine.
package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/gravitational/trace"

	log "github.com/sirupsen/logrus"

	"github.com/gravitational/uds-actor/internal/actorconfig"
	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/broker"
	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/job"
	"github.com/gravitational/uds-actor/internal/localserver"
	"github.com/gravitational/uds-actor/internal/platform"
	"github.com/gravitational/uds-actor/internal/router"
)

// Actor is the actor's whole runtime, built once per process.
type Actor struct {
	*job.Process

	store     *actorconfig.Store
	ops       platform.Operations
	newBroker func(host string, validateCertificate bool, token string) *broker.Client

	readiness *job.Readiness
	result    job.FutureResult
	mainJob   job.FuncJob

	ownAuthToken string

	client  *broker.Client
	flavour flavour
	cfg     *actortypes.ActorConfiguration

	// configSnapshot is the configuration exactly as read at Boot, before
	// any flavour mutates it. Unmanaged's Logout restores cfg from this
	// snapshot instead of rereading the store (see spec's "explicit
	// snapshot held in memory" design note).
	configSnapshot actortypes.ActorConfiguration

	router *router.Router
	server *localserver.Server
}

// Config configures a new Actor.
type Config struct {
	Store *actorconfig.Store
	Ops   platform.Operations

	// NewBroker builds the broker client for (host, validateCertificate,
	// token); overridable by tests to point at an httptest.Server.
	NewBroker func(host string, validateCertificate bool, token string) *broker.Client
}

// New builds an Actor. It contacts nothing until Run is called.
func New(cfg Config) *Actor {
	newBroker := cfg.NewBroker
	if newBroker == nil {
		newBroker = func(host string, validateCertificate bool, token string) *broker.Client {
			return broker.New(broker.Config{
				Host: host, ValidateCertificate: validateCertificate, Token: token,
				UserAgent: "uds-actor/" + localserver.Version,
			})
		}
	}

	a := &Actor{
		store:     cfg.Store,
		ops:       cfg.Ops,
		newBroker: newBroker,
		readiness: &job.Readiness{},
		result:    job.NewFutureResult(),
	}
	a.mainJob = a.run
	return a
}

// Run starts the process and blocks until it finishes, returning the main
// job's final error (nil on a clean Boot-time exit or graceful Teardown).
func (a *Actor) Run(ctx context.Context) error {
	a.Process = job.NewProcess(ctx)
	a.Process.Spawn(a.mainJob, job.Critical(true), job.WithReadiness(a.readiness), job.WithResult(a.result))
	<-a.Process.Done()
	return trace.Wrap(a.result.Err())
}

// WaitReady blocks until Serving has started or Boot has found no usable
// configuration, or ctx ends first.
func (a *Actor) WaitReady(ctx context.Context) (bool, error) {
	return a.readiness.WaitReady(ctx)
}

// newOwnAuthToken generates the process-lifetime local admission secret.
// It is generated once at process start and read-only thereafter.
func newOwnAuthToken() (string, error) {
	buf := make([]byte, consts.OwnAuthTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", trace.Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

func logOnce(logged *bool, entry *log.Entry, msg string, args ...interface{}) {
	if *logged {
		return
	}
	*logged = true
	entry.Errorf(msg, args...)
}
