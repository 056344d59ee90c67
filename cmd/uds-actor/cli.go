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

// CLI represents command structure: exactly the invocations this actor
// accepts. Modeled on fluentd-forward/cli.go's CLI struct shape.
type CLI struct {
	// ConfigPath is the path to the actor's persisted configuration.
	ConfigPath string `help:"Path to the actor's persisted configuration" optional:"true" name:"config" env:"UDSACTOR_CONFIG"`

	// Debug forces debug-level logging regardless of the persisted
	// configuration's log_level.
	Debug bool `help:"Debug logging" short:"d"`

	// Run starts the service loop: Boot through Teardown.
	Run RunCmd `cmd:"true" help:"Start the actor service loop"`

	// Debug2 is "debug", the service loop's long-standing alias (argv[1]
	// in {run, debug}), kept as a hidden second command rather than
	// folded into Run so `ctx.Command()` still reports which name was
	// typed.
	Debug2 RunCmd `cmd:"true" name:"debug" hidden:"true" help:"Alias of run"`

	// Login logs a user session in through the already-running actor's
	// private REST surface.
	Login LoginCmd `cmd:"true" help:"Log a user session in"`

	// Logout logs a user session out through the already-running actor's
	// private REST surface.
	Logout LogoutCmd `cmd:"true" help:"Log a user session out"`
}
