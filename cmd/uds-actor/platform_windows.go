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

//go:build windows

package main

import (
	"os"
	"path/filepath"

	"github.com/gravitational/uds-actor/internal/platform"
	"github.com/gravitational/uds-actor/internal/platform/windows"
)

func newPlatformOps() platform.Operations { return windows.New() }

// defaultConfigPath and defaultSessionFile have no fixed path on Windows,
// unlike their POSIX counterparts in internal/consts: both live under
// whatever ProgramData/TEMP the running session resolves to.
func defaultConfigPath() string {
	return filepath.Join(os.Getenv("ProgramData"), "udsactor", "udsactor.cfg")
}

func defaultSessionFile() string {
	return filepath.Join(os.Getenv("TEMP"), "udsactor.session")
}
