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

// Package router is the actor's central hub: two FIFO queues of
// actortypes.UDSMessage, one dispatch table keyed by message kind, and one
// shared logged-in flag that only the router mutates. Adapted from
// access/service_job.go's per-event spawn loop and
// lib/watcherjob.watcherJob's ordered dispatch.
package router

import (
	"context"
	"encoding/json"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/job"
	"github.com/gravitational/uds-actor/internal/logger"
)

// Actor is the business-logic collaborator the router dispatches to. C6's
// lifecycle implements it; tests can fake it directly without standing up
// C1/C3/C5.
type Actor interface {
	Login(ctx context.Context, req actortypes.LoginRequest) (actortypes.LoginResponse, error)
	Logout(ctx context.Context, req actortypes.LogoutRequest) error
	Log(ctx context.Context, req actortypes.LogRequest) error
	Script(ctx context.Context, req actortypes.ScriptRequest) error
	Preconnect(ctx context.Context, req actortypes.PreconnectRequest) error
}

// Router owns the broker-ingress and user-egress queues.
type Router struct {
	actor Actor

	brokerIngress chan actortypes.UDSMessage
	userEgress    chan actortypes.UDSMessage

	loggedIn loggedInFlag
}

const queueCapacity = 256

// New builds a Router dispatching to actor.
func New(actor Actor) *Router {
	return &Router{
		actor:         actor,
		brokerIngress: make(chan actortypes.UDSMessage, queueCapacity),
		userEgress:    make(chan actortypes.UDSMessage, queueCapacity),
	}
}

// EnqueueBrokerIngress pushes msg onto the broker-ingress queue. Called by
// C5's public/private handlers and by the WebSocket reader.
func (r *Router) EnqueueBrokerIngress(msg actortypes.UDSMessage) {
	r.brokerIngress <- msg
}

// EnqueueUserEgress pushes msg onto the user-egress queue. Called by C5's
// handlers that forward straight to the user client (e.g. public logout).
func (r *Router) EnqueueUserEgress(msg actortypes.UDSMessage) {
	r.userEgress <- msg
}

// UserEgress exposes the user-egress queue for the WebSocket writer to
// drain; it is the only reader.
func (r *Router) UserEgress() <-chan actortypes.UDSMessage {
	return r.userEgress
}

// DoJob drains the broker-ingress queue in enqueue order until stopped.
// Log is spawned concurrently (safe, stateless); every other kind
// dispatches inline so ordering holds per the router's testable property.
func (r *Router) DoJob(ctx context.Context) error {
	stopped := job.Stopped(ctx)
	for {
		select {
		case <-stopped:
			return nil
		case msg := <-r.brokerIngress:
			r.dispatch(ctx, msg)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, msg actortypes.UDSMessage) {
	switch msg.Kind {
	case actortypes.KindLog:
		process := job.GetProcess(ctx)
		process.SpawnFunc(func(ctx context.Context) error {
			r.handle(ctx, msg)
			return nil
		})
	default:
		r.handle(ctx, msg)
	}
}

func (r *Router) handle(ctx context.Context, msg actortypes.UDSMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Get(ctx).WithField("kind", msg.Kind).Errorf("router handler panicked: %v", rec)
		}
	}()

	var err error
	switch msg.Kind {
	case actortypes.KindLogin:
		err = r.handleLogin(ctx, msg)
	case actortypes.KindLogout:
		err = r.handleLogout(ctx, msg)
	case actortypes.KindClose:
		err = r.handleClose(ctx, msg)
	case actortypes.KindLog:
		err = r.handleLog(ctx, msg)
	case actortypes.KindScript:
		err = r.handleScript(ctx, msg)
	case actortypes.KindPreconnect:
		err = r.handlePreconnect(ctx, msg)
	case actortypes.KindMessage, actortypes.KindScreenshot:
		r.userEgress <- msg
	default:
		// Ping/Pong never reach the router; anything else is logged and
		// dropped rather than crashing the loop.
		logger.Get(ctx).WithField("kind", msg.Kind).Warn("router: unhandled message kind")
	}
	if err != nil {
		logger.Get(ctx).WithField("kind", msg.Kind).WithError(err).Error("router: handler failed")
	}
}

func (r *Router) handleLogin(ctx context.Context, msg actortypes.UDSMessage) error {
	var req actortypes.LoginRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return err
	}

	r.loggedIn.set(true)
	resp, err := r.actor.Login(ctx, req)
	if msg.Done != nil {
		msg.Done <- resp
		close(msg.Done)
	}
	if err != nil {
		return err
	}

	out, err := actortypes.NewMessage(actortypes.KindLogin, resp)
	if err != nil {
		return err
	}
	r.userEgress <- out
	return nil
}

func (r *Router) handleLogout(ctx context.Context, msg actortypes.UDSMessage) error {
	var req actortypes.LogoutRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return err
	}

	if req.FromBroker {
		r.userEgress <- msg
		return nil
	}

	if !r.loggedIn.get() {
		return nil
	}
	r.loggedIn.set(false)
	return r.actor.Logout(ctx, req)
}

func (r *Router) handleClose(ctx context.Context, msg actortypes.UDSMessage) error {
	// Close is a local-originated Logout: same handling, empty identifiers.
	logoutMsg, err := actortypes.NewMessage(actortypes.KindLogout, actortypes.NullLogoutRequest)
	if err != nil {
		return err
	}
	return r.handleLogout(ctx, logoutMsg)
}

func (r *Router) handleLog(ctx context.Context, msg actortypes.UDSMessage) error {
	var req actortypes.LogRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return err
	}
	return r.actor.Log(ctx, req)
}

func (r *Router) handleScript(ctx context.Context, msg actortypes.UDSMessage) error {
	var req actortypes.ScriptRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return err
	}
	if req.AsUser {
		r.userEgress <- msg
		return nil
	}
	return r.actor.Script(ctx, req)
}

func (r *Router) handlePreconnect(ctx context.Context, msg actortypes.UDSMessage) error {
	var req actortypes.PreconnectRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return err
	}
	return r.actor.Preconnect(ctx, req)
}
