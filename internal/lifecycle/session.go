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

package lifecycle

import (
	"context"
	"fmt"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/logger"
)

// Login implements router.Actor, grounded on managed.py's/unmanaged.py's
// login: notify the broker, swallowing (logging) any broker error rather
// than failing the session, then run the configured login script if any.
// Unmanaged additionally refreshes its token first, per
// unmanaged.py's initialize_flow_for_unmanaged.
func (a *Actor) Login(ctx context.Context, req actortypes.LoginRequest) (actortypes.LoginResponse, error) {
	if a.cfg.ActorKind == actortypes.Unmanaged {
		a.reinitializeUnmanaged(ctx)
	}

	resp, err := a.client.NotifyLogin(ctx, req.Username, req.SessionType)
	if err != nil {
		logger.Get(ctx).WithError(err).Error("error notifying login")
		return actortypes.NullLoginResponse, nil
	}

	if script := a.store.ScriptOnLogin(); script != "" {
		sessionType := req.SessionType
		if sessionType == "" {
			sessionType = "unknown"
		}
		logger.Get(ctx).WithField("script", script).Info("executing script on login")
		runShell(ctx, fmt.Sprintf("%s %s %s %s", script, req.Username, sessionType, a.cfg.ActorKind))
	}
	return resp, nil
}

// reinitializeUnmanaged re-runs the token-exchange initialize call at login
// time, the way unmanaged.py's initialize_flow_for_unmanaged does: the
// adopted token only ever lives in memory (cfg.Token), never persisted,
// since the same machine serves a new user service on every session.
func (a *Actor) reinitializeUnmanaged(ctx context.Context) {
	resp, err := a.client.Initialize(ctx)
	if err != nil {
		logger.Get(ctx).WithError(err).Warn("error validating with broker during login")
		return
	}
	if resp.Token != "" && resp.Token != a.cfg.Token {
		a.cfg.Token = resp.Token
		a.client.SetToken(resp.Token)
	}
	a.cfg.DataConfig = &actortypes.DataConfig{
		UniqueID: resp.UniqueID,
		OSAction: resp.OS.Action,
		Name:     resp.OS.Name,
		Custom:   resp.OS.Custom,
	}
}

// Logout implements router.Actor. Broker errors are logged, not
// propagated: a session tears down locally regardless of whether the
// broker could be told about it. Unmanaged restores the in-memory
// configuration snapshot afterwards, so the next login starts from the
// original shared token again.
func (a *Actor) Logout(ctx context.Context, req actortypes.LogoutRequest) error {
	if err := a.client.NotifyLogout(ctx, req.Username, req.SessionType, req.SessionID); err != nil {
		logger.Get(ctx).WithError(err).Error("error notifying logout")
	}

	if a.cfg.ActorKind == actortypes.Unmanaged {
		restored := a.configSnapshot.Clone()
		*a.cfg = restored
		a.client.SetToken(restored.Token)
	}
	return nil
}

// Log implements router.Actor, forwarding a client-reported log line to the
// broker. Losing one is acceptable (Client.Log is not retried); failing
// the whole router job over it is not, so the error is only logged by the
// router's generic handler.
func (a *Actor) Log(ctx context.Context, req actortypes.LogRequest) error {
	return trace.Wrap(a.client.Log(ctx, req.Level, req.Message))
}

// Script implements router.Actor: Script messages not marked as_user reach
// here to run synchronously, with the return value discarded.
func (a *Actor) Script(ctx context.Context, req actortypes.ScriptRequest) error {
	runShell(ctx, req.Code)
	return nil
}

// Preconnect implements router.Actor: runs the configured pre_command, if
// any, before a new connection is accepted, per rest.py register's
// "preCommand: Command to execute before a new connection".
func (a *Actor) Preconnect(ctx context.Context, req actortypes.PreconnectRequest) error {
	if a.cfg.PreCommand == "" {
		return nil
	}
	logger.Get(ctx).WithField("user", req.Username).WithField("protocol", req.Protocol).Info("running pre-connect command")
	runShell(ctx, a.cfg.PreCommand)
	return nil
}
