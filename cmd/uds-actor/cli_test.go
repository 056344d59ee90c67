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
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args []string) (*CLI, *kong.Context) {
	t.Helper()
	c := CLI{}
	parser, err := kong.New(&c, kong.Name(appName), kong.UsageOnError())
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &c, ctx
}

func TestCLIDispatchesToTheThreeVerbs(t *testing.T) {
	_, ctx := parseArgs(t, []string{"run"})
	require.Equal(t, "run", ctx.Command())

	_, ctx = parseArgs(t, []string{"debug"})
	require.Equal(t, "debug", ctx.Command())

	c, ctx := parseArgs(t, []string{"login", "alice"})
	require.Equal(t, "login <username>", ctx.Command())
	require.Equal(t, "alice", c.Login.Username)

	c, ctx = parseArgs(t, []string{"logout", "alice"})
	require.Equal(t, "logout <username>", ctx.Command())
	require.Equal(t, "alice", c.Logout.Username)
}

func TestCLILoginRequiresAUsername(t *testing.T) {
	c := CLI{}
	parser, err := kong.New(&c, kong.Name(appName), kong.UsageOnError())
	require.NoError(t, err)
	_, err = parser.Parse([]string{"login"})
	require.Error(t, err)
}

func TestCLIDebugFlagAndConfigPath(t *testing.T) {
	c, _ := parseArgs(t, []string{"--debug", "--config", "/tmp/custom.cfg", "run"})
	require.True(t, c.Debug)
	require.Equal(t, "/tmp/custom.cfg", c.ConfigPath)
}
