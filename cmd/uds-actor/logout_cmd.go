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
	"context"
	"os"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actortypes"
)

// LogoutCmd logs a user session out, reading back the session id LoginCmd
// persisted.
type LogoutCmd struct {
	Username string `arg:"true" help:"Username to log out"`
}

func (c *LogoutCmd) run(cli *CLI) error {
	sessionID, err := os.ReadFile(defaultSessionFile())
	if err != nil {
		return trace.Wrap(err, "no session file, was this user ever logged in through this CLI?")
	}

	_, err = callPrivate(context.Background(), "/private/user_logout", actortypes.LogoutRequest{
		Username:  c.Username,
		SessionID: string(sessionID),
	})
	return trace.Wrap(err)
}
