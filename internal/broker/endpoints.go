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

package broker

import (
	"context"
	"net/http"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/certs"
	"github.com/gravitational/uds-actor/internal/consts"
)

// AuthRealm is one entry of EnumerateAuthenticators' result, used only by
// the registration collaborator (out of scope here, kept for completeness
// per original_source's actor_register.py).
type AuthRealm struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// EnumerateAuthenticators lists login realms. Not retried.
func (c *Client) EnumerateAuthenticators(ctx context.Context) ([]AuthRealm, error) {
	env, err := c.do(ctx, http.MethodGet, "auth/auths", nil)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var realms []AuthRealm
	if err := env.unmarshalResult(&realms); err != nil {
		return nil, trace.Wrap(err)
	}
	return realms, nil
}

// Login exchanges user credentials for a session token header. Not
// retried; out of scope for the core per spec's registration-CLI
// non-goal, kept here because it shares the broker's wire contract.
func (c *Client) Login(ctx context.Context, authID, username, password string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "auth/login", map[string]interface{}{
		"auth": authID, "username": username, "password": password,
	})
	if err != nil {
		return "", trace.Wrap(err)
	}
	var token string
	if err := env.unmarshalResult(&token); err != nil {
		return "", trace.Wrap(err)
	}
	return token, nil
}

// Initialize exchanges the stored token for a machine-bound token and the
// OS action the broker wants performed. Not retried — the lifecycle itself
// retries Initialize indefinitely on failure.
func (c *Client) Initialize(ctx context.Context) (actortypes.InitializeResponse, error) {
	env, err := c.do(ctx, http.MethodPost, "actor/v3/initialize", nil)
	if err != nil {
		return actortypes.InitializeResponse{}, trace.Wrap(err)
	}

	var raw map[string]interface{}
	if err := env.unmarshalResult(&raw); err != nil {
		return actortypes.InitializeResponse{}, trace.Wrap(err)
	}

	var resp actortypes.InitializeResponse
	if err := env.unmarshalResult(&resp); err != nil {
		return actortypes.InitializeResponse{}, trace.Wrap(err)
	}
	actortypes.FoldLegacyOSFields(raw, &resp.OS)
	return resp, nil
}

// Unmanaged is the unmanaged equivalent of Ready: it returns a certificate
// without requiring a prior Initialize/token-adoption step. Not retried.
func (c *Client) Unmanaged(ctx context.Context, ip string, port int, authToken string) (certs.Info, error) {
	env, err := c.do(ctx, http.MethodPost, "actor/v3/unmanaged", map[string]interface{}{
		"ip": ip, "port": port, "auth_token": authToken,
	})
	if err != nil {
		return certs.Info{}, trace.Wrap(err)
	}
	return certInfoFromEnvelope(env)
}

// Ready announces the actor's reachable ip:port:token and receives the
// server certificate. Retried up to consts.Retries times on connection
// failure, with an 8s·2ⁱ backoff capped at 16×.
func (c *Client) Ready(ctx context.Context, ip string, port int, authToken string) (certs.Info, error) {
	var info certs.Info
	err := c.withRetry(ctx, consts.Retries, func() error {
		env, err := c.do(ctx, http.MethodPost, "actor/v3/ready", map[string]interface{}{
			"ip": ip, "port": port, "auth_token": authToken,
		})
		if err != nil {
			return err
		}
		info, err = certInfoFromEnvelope(env)
		return err
	})
	return info, trace.Wrap(err)
}

// IPChange rotates the certificate after the actor's IP changes. Retried
// like Ready.
func (c *Client) IPChange(ctx context.Context, ip string, port int, authToken string) (certs.Info, error) {
	var info certs.Info
	err := c.withRetry(ctx, consts.Retries, func() error {
		env, err := c.do(ctx, http.MethodPost, "actor/v3/ipchange", map[string]interface{}{
			"ip": ip, "port": port, "auth_token": authToken,
		})
		if err != nil {
			return err
		}
		info, err = certInfoFromEnvelope(env)
		return err
	})
	return info, trace.Wrap(err)
}

// NotifyLogin tells the broker a user session started and returns the
// session bounds (ip/hostname/dead_line/max_idle/session_id) it assigns.
// Retried like Ready.
func (c *Client) NotifyLogin(ctx context.Context, username, sessionType string) (actortypes.LoginResponse, error) {
	var resp actortypes.LoginResponse
	err := c.withRetry(ctx, consts.Retries, func() error {
		env, err := c.do(ctx, http.MethodPost, "actor/v3/login", map[string]interface{}{
			"username": username, "session_type": sessionType,
		})
		if err != nil {
			return err
		}
		return env.unmarshalResult(&resp)
	})
	return resp, trace.Wrap(err)
}

// NotifyLogout tells the broker a user session ended. Retried like Ready.
func (c *Client) NotifyLogout(ctx context.Context, username, sessionType, sessionID string) error {
	return c.withRetry(ctx, consts.Retries, func() error {
		_, err := c.do(ctx, http.MethodPost, "actor/v3/logout", map[string]interface{}{
			"username": username, "session_type": sessionType, "session_id": sessionID,
		})
		return err
	})
}

// Log ships one log record. Not retried — losing a log line is acceptable,
// blocking the log-shipper on a flaky broker is not.
func (c *Client) Log(ctx context.Context, level int, message string) error {
	_, err := c.do(ctx, http.MethodPost, "actor/v3/log", map[string]interface{}{
		"level": level, "message": message,
	})
	return trace.Wrap(err)
}

// Register performs the one-shot install-time registration. Out of scope
// for the core (it belongs to the registration CLI non-goal) but part of
// the same wire contract, so it lives alongside the rest.
func (c *Client) Register(ctx context.Context, username, password, authID, token string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "actor/v3/register", map[string]interface{}{
		"username": username, "password": password, "auth": authID,
	})
	if err != nil {
		return "", trace.Wrap(err)
	}
	var newToken string
	if err := env.unmarshalResult(&newToken); err != nil {
		return "", trace.Wrap(err)
	}
	return newToken, nil
}

// Test is a liveness check for a stored token. Not retried.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "actor/v3/test", nil)
	return trace.Wrap(err)
}
