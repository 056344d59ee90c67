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

package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/lifecycle"
)

// TestManagedFirstBootRenameThenReboot covers scenario S1: a Managed actor
// that has never run Initialize gets back a rename instruction, applies
// it, and reboots instead of ever reaching Serving.
func TestManagedFirstBootRenameThenReboot(t *testing.T) {
	fb := newFakeBroker(t)
	fb.initializeResp = actortypes.InitializeResponse{
		UniqueID: "aa:bb:cc:dd:ee:ff",
		OS: actortypes.OSResponse{
			Action: actortypes.OSActionRename,
			Name:   "newhost",
			Custom: map[string]interface{}{
				"username": "alice", "password": "oldpw", "new_password": "newpw",
			},
		},
	}
	host := fb.start(t)

	ops := baseOps()
	ops.RenameNeedsReboot = true

	store := newStore(t, actortypes.ActorConfiguration{
		ActorKind: actortypes.Managed,
		Host:      host,
		Token:     "initial-token",
	})

	a := lifecycle.New(lifecycle.Config{Store: store, Ops: ops, NewBroker: newTestBroker(host)})
	_, cancel, done := runActor(t, a)
	defer cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("actor did not exit after a rename+reboot")
	}

	require.Equal(t, []string{"newhost"}, ops.RenameCalls)
	require.Equal(t, 1, ops.RebootCalls)
	require.Len(t, ops.PasswordSets, 1)
	require.Equal(t, "alice", ops.PasswordSets[0].User)

	onDisk := store.Read()
	require.True(t, onDisk.Initialized)
}

// TestManagedRunonceExitsWithoutNotifyReady covers scenario S2: a
// configured runonce command runs once, is cleared from the stored
// configuration, and the actor exits before ever calling NotifyReady.
func TestManagedRunonceExitsWithoutNotifyReady(t *testing.T) {
	fb := newFakeBroker(t)
	host := fb.start(t)

	marker := filepath.Join(t.TempDir(), "ran")
	store := newStore(t, actortypes.ActorConfiguration{
		ActorKind:      actortypes.Managed,
		Host:           host,
		Token:          "initial-token",
		Initialized:    true,
		RunonceCommand: "touch " + marker,
	})

	ops := baseOps()
	a := lifecycle.New(lifecycle.Config{Store: store, Ops: ops, NewBroker: newTestBroker(host)})
	_, cancel, done := runActor(t, a)
	defer cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("actor did not exit after the runonce command")
	}

	waitForFile(t, marker, time.Second)
	require.Empty(t, store.Read().RunonceCommand)
	require.Empty(t, fb.readyCalls, "NotifyReady should never be reached")
}

// bootToServing drives a through Boot..Serving and returns once WaitReady
// reports the actor up. Teardown is registered via t.Cleanup so the fixed
// local-server port is guaranteed free before the next test binds it.
func bootToServing(t *testing.T, a *lifecycle.Actor) context.Context {
	t.Helper()
	ctx, cancel, done := runActor(t, a)
	t.Cleanup(func() {
		cancel()
		<-done
	})
	ready, err := a.WaitReady(ctx)
	require.NoError(t, err)
	require.True(t, ready)
	return ctx
}

// TestUnmanagedLoginReinitializesAndLogoutRestoresToken covers the
// Unmanaged login/logout token lifecycle: each login re-validates with the
// broker's managed initialize endpoint (possibly rotating the token), and
// logout restores the token the actor booted with.
func TestUnmanagedLoginReinitializesAndLogoutRestoresToken(t *testing.T) {
	fb := newFakeBroker(t)
	fb.initializeResp = actortypes.InitializeResponse{UniqueID: "u1", Token: "rotated-token"}
	host := fb.start(t)

	store := newStore(t, actortypes.ActorConfiguration{
		ActorKind: actortypes.Unmanaged,
		Host:      host,
		Token:     "original-token",
	})

	ops := baseOps()
	a := lifecycle.New(lifecycle.Config{Store: store, Ops: ops, NewBroker: newTestBroker(host)})
	ctx := bootToServing(t, a)

	require.Len(t, fb.unmanagedCalls, 1)

	_, err := a.Login(ctx, actortypes.LoginRequest{Username: "bob", SessionType: "x"})
	require.NoError(t, err)
	require.Len(t, fb.initializeCalls, 1)
	require.Equal(t, "original-token", fb.initializeCalls[0]["token"],
		"the per-login re-initialize call happens before the response rotates the token")
	require.Len(t, fb.loginCalls, 1)
	require.Equal(t, "rotated-token", fb.loginCalls[0]["token"],
		"NotifyLogin runs after reinitializeUnmanaged, so it already carries the rotated token")

	require.NoError(t, a.Logout(ctx, actortypes.LogoutRequest{Username: "bob"}))
	require.Len(t, fb.logoutCalls, 1)
	require.Equal(t, "rotated-token", fb.logoutCalls[0]["token"])

	// A second login round after logout must re-initialize with the
	// original token again: logout swapped the in-memory config back to
	// its boot-time snapshot before this round started.
	_, err = a.Login(ctx, actortypes.LoginRequest{Username: "bob", SessionType: "x"})
	require.NoError(t, err)
	require.Len(t, fb.initializeCalls, 2)
	require.Equal(t, "original-token", fb.initializeCalls[1]["token"])
}

// TestManagedLoginRunsLoginScript exercises the ScriptOnLogin hook: on a
// successful NotifyLogin, the configured script runs with
// "username sessionType actorKind" appended.
func TestManagedLoginRunsLoginScript(t *testing.T) {
	fb := newFakeBroker(t)
	host := fb.start(t)

	marker := filepath.Join(t.TempDir(), "login-script-ran")
	script := filepath.Join(t.TempDir(), "on-login.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$1 $2 $3\" > "+marker+"\n"), 0o700))

	store := newStore(t, actortypes.ActorConfiguration{
		ActorKind:   actortypes.Managed,
		Host:        host,
		Token:       "tok",
		Initialized: true,
		LoginScript: script,
	})

	ops := baseOps()
	a := lifecycle.New(lifecycle.Config{Store: store, Ops: ops, NewBroker: newTestBroker(host)})
	ctx := bootToServing(t, a)

	_, err := a.Login(ctx, actortypes.LoginRequest{Username: "carol", SessionType: "console"})
	require.NoError(t, err)

	waitForFile(t, marker, time.Second)
	contents, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Equal(t, "carol console managed\n", string(contents))
}

// TestPreconnectRunsConfiguredCommand exercises the Preconnect hook added
// on top of the original's ActorProcessor contract.
func TestPreconnectRunsConfiguredCommand(t *testing.T) {
	fb := newFakeBroker(t)
	host := fb.start(t)

	marker := filepath.Join(t.TempDir(), "preconnect-ran")
	store := newStore(t, actortypes.ActorConfiguration{
		ActorKind:   actortypes.Managed,
		Host:        host,
		Token:       "tok",
		Initialized: true,
		PreCommand:  "touch " + marker,
	})

	ops := baseOps()
	a := lifecycle.New(lifecycle.Config{Store: store, Ops: ops, NewBroker: newTestBroker(host)})
	ctx := bootToServing(t, a)

	require.NoError(t, a.Preconnect(ctx, actortypes.PreconnectRequest{Username: "dave", Protocol: "rdp"}))
	waitForFile(t, marker, time.Second)
}

// TestManagedNotifyReadyExhaustsBudgetAndReboots covers scenario S3: once
// NotifyReady's retry budget is exhausted the actor reboots and exits
// rather than ever reaching Serving. The broker's ready endpoint is made to
// fail on every call, and the context carries a deadline short enough that
// the backoff sequence's sleep between attempts is cut short by ctx.Done
// rather than by the real, multi-second delay the budget would otherwise
// burn through attempt by attempt.
func TestManagedNotifyReadyExhaustsBudgetAndReboots(t *testing.T) {
	fb := newFakeBroker(t)
	fb.readyErr = true
	host := fb.start(t)

	store := newStore(t, actortypes.ActorConfiguration{
		ActorKind:   actortypes.Managed,
		Host:        host,
		Token:       "tok",
		Initialized: true,
	})

	ops := baseOps()
	a := lifecycle.New(lifecycle.Config{Store: store, Ops: ops, NewBroker: newTestBroker(host)})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("actor did not reboot and exit after exhausting its notify-ready budget")
	}

	require.Equal(t, 1, ops.RebootCalls)
	require.NotEmpty(t, fb.readyCalls)
}

// TestLoginErrorIsSwallowed covers managed.py's login: a broker error never
// propagates to the caller, it is only logged.
func TestLoginErrorIsSwallowed(t *testing.T) {
	fb := newFakeBroker(t)
	host := fb.start(t)

	store := newStore(t, actortypes.ActorConfiguration{
		ActorKind:   actortypes.Managed,
		Host:        host,
		Token:       "tok",
		Initialized: true,
	})

	ops := baseOps()
	a := lifecycle.New(lifecycle.Config{Store: store, Ops: ops, NewBroker: newTestBroker(host)})
	ctx := bootToServing(t, a)

	fb.mu.Lock()
	fb.loginErr = true
	fb.mu.Unlock()

	resp, err := a.Login(ctx, actortypes.LoginRequest{Username: "erin"})
	require.NoError(t, err)
	require.Equal(t, actortypes.NullLoginResponse, resp)
}
