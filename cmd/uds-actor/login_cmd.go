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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/broker"
	"github.com/gravitational/uds-actor/internal/consts"
)

// LoginCmd logs a user session in by calling the already-running actor's
// loopback-only private REST surface, exactly as the broker's own
// user-space client would.
type LoginCmd struct {
	Username string `arg:"true" help:"Username to log in"`
}

// privateEnvelope is the response shape every local HTTPS route returns.
type privateEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Stamp   string          `json:"stamp"`
	Version string          `json:"version"`
	Error   *string         `json:"error"`
}

func privateClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: broker.NewTLSConfig(false)},
	}
}

func privateURL(path string) string {
	return fmt.Sprintf("https://127.0.0.1:%d%s", consts.ListenPort, path)
}

func callPrivate(ctx context.Context, path string, body interface{}) (privateEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return privateEnvelope{}, trace.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, privateURL(path), bytes.NewReader(payload))
	if err != nil {
		return privateEnvelope{}, trace.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := privateClient().Do(req)
	if err != nil {
		return privateEnvelope{}, trace.Wrap(err, "is the actor service running?")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return privateEnvelope{}, trace.Wrap(err)
	}

	var env privateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return privateEnvelope{}, trace.Wrap(err, "decoding response from %s", path)
	}
	if env.Error != nil {
		return env, trace.Errorf("%s", *env.Error)
	}
	return env, nil
}

func (c *LoginCmd) run(cli *CLI) error {
	ctx := context.Background()
	sessionType, err := newPlatformOps().SessionType(ctx)
	if err != nil {
		return trace.Wrap(err)
	}

	env, err := callPrivate(ctx, "/private/user_login", actortypes.LoginRequest{
		Username:    c.Username,
		SessionType: sessionType,
	})
	if err != nil {
		return trace.Wrap(err)
	}

	var resp actortypes.LoginResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		return trace.Wrap(err)
	}

	fmt.Printf("%s,%s,%d,%d\n", resp.IP, resp.Hostname, resp.MaxIdle, resp.DeadLine)

	sessionFile := defaultSessionFile()
	return trace.Wrap(os.WriteFile(sessionFile, []byte(resp.SessionID), 0o600))
}
