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
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/gravitational/uds-actor/internal/localserver"
	"github.com/gravitational/uds-actor/internal/logger"
	"github.com/gravitational/uds-actor/pkg/version"
)

// cli is the parsed command structure.
var cli CLI

const appName = "uds-actor"

func main() {
	logger.Init()
	localserver.Version = version.Version
	version.Print(appName)

	args := os.Args[1:]
	if len(args) == 0 {
		// No argv is the same as argv[1]=="run".
		args = []string{"run"}
	}

	parser, err := kong.New(&cli,
		kong.Name(appName),
		kong.Description("UDS virtual-desktop endpoint actor"),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var runErr error
	switch ctx.Command() {
	case "run":
		runErr = cli.Run.run(&cli)
	case "debug":
		cli.Debug = true
		runErr = cli.Debug2.run(&cli)
	case "login <username>":
		runErr = cli.Login.run(&cli)
	case "logout <username>":
		runErr = cli.Logout.run(&cli)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s run|debug|login <username>|logout <username>\n", appName)
		os.Exit(2)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
