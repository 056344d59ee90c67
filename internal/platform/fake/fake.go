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

// Package fake is an in-memory platform.Operations used by tests on any
// host OS, standing in for the build-tag-selected linux/windows
// backends the way test_operations.py's setUp swaps in a test double.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/gravitational/uds-actor/internal/actortypes"
)

// Operations is a fully in-memory, goroutine-safe stand-in for
// platform.Operations.
type Operations struct {
	mu sync.Mutex

	Admin         bool
	Hostname      string
	Interfaces    []actortypes.InterfaceInfo
	Domain        string
	Name          string
	Version       string
	Idle          *time.Duration
	User          string
	Session       string
	RebootCalls   int
	LogoffCalls   int
	RenameCalls   []string
	JoinCalls     []map[string]interface{}
	PasswordSets  []PasswordChange
	Protected     []string
	Titles        []string
	TimeSyncCalls int

	RenameNeedsReboot bool
	RenameErr         error
	JoinErr           error
	PasswordErr       error
	TimeSyncErr       error
}

// PasswordChange records one ChangeUserPassword call.
type PasswordChange struct {
	User, Old, New string
}

// New builds a fake Operations with hostname as its reported computer name.
func New(hostname string) *Operations {
	return &Operations{Hostname: hostname, Name: "uds-test", Version: "uds-test 1.0"}
}

func (o *Operations) IsAdmin(ctx context.Context) (bool, error) { return o.Admin, nil }

func (o *Operations) ComputerName(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Hostname, nil
}

func (o *Operations) ListInterfaces(ctx context.Context) ([]actortypes.InterfaceInfo, error) {
	return o.Interfaces, nil
}

func (o *Operations) DomainName(ctx context.Context) (string, error) { return o.Domain, nil }
func (o *Operations) OSName(ctx context.Context) (string, error)     { return o.Name, nil }
func (o *Operations) OSVersion(ctx context.Context) (string, error)  { return o.Version, nil }

func (o *Operations) Reboot(ctx context.Context, flags int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.RebootCalls++
	return nil
}

func (o *Operations) Logoff(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.LogoffCalls++
	return nil
}

func (o *Operations) RenameComputer(ctx context.Context, newName string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.RenameCalls = append(o.RenameCalls, newName)
	if o.RenameErr != nil {
		return false, o.RenameErr
	}
	o.Hostname = newName
	return o.RenameNeedsReboot, nil
}

func (o *Operations) JoinDomain(ctx context.Context, custom map[string]interface{}) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.JoinCalls = append(o.JoinCalls, custom)
	return o.JoinErr
}

func (o *Operations) ChangeUserPassword(ctx context.Context, user, oldPassword, newPassword string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.PasswordSets = append(o.PasswordSets, PasswordChange{User: user, Old: oldPassword, New: newPassword})
	return o.PasswordErr
}

func (o *Operations) IdleDuration(ctx context.Context) (*time.Duration, error) { return o.Idle, nil }
func (o *Operations) CurrentUser(ctx context.Context) (string, error)         { return o.User, nil }
func (o *Operations) SessionType(ctx context.Context) (string, error)         { return o.Session, nil }
func (o *Operations) ForceTimeSync(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.TimeSyncCalls++
	return o.TimeSyncErr
}

func (o *Operations) ProtectFileOwnerOnly(ctx context.Context, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Protected = append(o.Protected, path)
	return nil
}

func (o *Operations) SetProcessTitle(ctx context.Context, title string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Titles = append(o.Titles, title)
	return nil
}
