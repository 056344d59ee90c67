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

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actorconfig"
	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/lifecycle"
	"github.com/gravitational/uds-actor/internal/logger"
	"github.com/gravitational/uds-actor/internal/signals"
)

// RunCmd starts the actor service loop and blocks until a shutdown signal
// or an unrecoverable failure. It has no flags of its own: the config
// path and debug flag both live on CLI so `run` and its `debug` alias
// parse identically.
type RunCmd struct{}

func (c *RunCmd) run(cli *CLI) error {
	configPath := cli.ConfigPath
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	store := actorconfig.New(configPath)

	if cli.Debug {
		if err := logger.Setup(logger.Config{Severity: "debug"}); err != nil {
			return trace.Wrap(err)
		}
	} else if err := logger.Setup(logger.Config{Severity: severityForLogLevel(store.Read().LogLevel)}); err != nil {
		return trace.Wrap(err)
	}

	a := lifecycle.New(lifecycle.Config{Store: store, Ops: newPlatformOps()})

	go signals.Serve(a, consts.TeardownGrace)

	return trace.Wrap(a.Run(context.Background()))
}

// severityForLogLevel translates the persisted configuration's Python
// logging.* level number into this actor's own logger.Config.Severity,
// falling back to "info" for anything it doesn't recognize (0 included,
// the zero value for a never-configured field).
func severityForLogLevel(level int) string {
	switch {
	case level != 0 && level <= 10:
		return "debug"
	case level > 10 && level <= 20:
		return "info"
	case level > 20 && level <= 30:
		return "warn"
	case level > 30:
		return "error"
	default:
		return "info"
	}
}
