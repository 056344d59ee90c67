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

package router_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/job"
	"github.com/gravitational/uds-actor/internal/router"
)

type fakeActor struct {
	mu          sync.Mutex
	order       []string
	logoutCalls int
}

func (f *fakeActor) Login(ctx context.Context, req actortypes.LoginRequest) (actortypes.LoginResponse, error) {
	f.mu.Lock()
	f.order = append(f.order, "login:"+req.Username)
	f.mu.Unlock()
	return actortypes.LoginResponse{IP: "0.1.2.3", SessionID: "S", MaxIdle: 900, DeadLine: 1234}, nil
}

func (f *fakeActor) Logout(ctx context.Context, req actortypes.LogoutRequest) error {
	f.mu.Lock()
	f.order = append(f.order, "logout:"+req.Username)
	f.logoutCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeActor) Log(ctx context.Context, req actortypes.LogRequest) error { return nil }

func (f *fakeActor) Script(ctx context.Context, req actortypes.ScriptRequest) error {
	f.mu.Lock()
	f.order = append(f.order, "script")
	f.mu.Unlock()
	return nil
}

func (f *fakeActor) Preconnect(ctx context.Context, req actortypes.PreconnectRequest) error {
	f.mu.Lock()
	f.order = append(f.order, "preconnect:"+req.Username)
	f.mu.Unlock()
	return nil
}

func startRouter(t *testing.T, actor *fakeActor) (*router.Router, *job.Process) {
	t.Helper()
	p := job.NewProcess(context.Background())
	r := router.New(actor)
	p.Spawn(r)
	t.Cleanup(p.Close)
	return r, p
}

func TestLogoutFromBrokerDoesNotCallActor(t *testing.T) {
	actor := &fakeActor{}
	r, _ := startRouter(t, actor)

	msg, err := actortypes.NewMessage(actortypes.KindLogout, actortypes.LogoutRequest{FromBroker: true})
	require.NoError(t, err)
	r.EnqueueBrokerIngress(msg)

	select {
	case out := <-r.UserEgress():
		require.Equal(t, actortypes.KindLogout, out.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a message on user-egress")
	}

	require.Equal(t, 0, actor.logoutCalls)
}

func TestPreconnectDispatchesToActor(t *testing.T) {
	actor := &fakeActor{}
	r, _ := startRouter(t, actor)

	msg, err := actortypes.NewMessage(actortypes.KindPreconnect, actortypes.PreconnectRequest{Username: "bob"})
	require.NoError(t, err)
	r.EnqueueBrokerIngress(msg)

	require.Eventually(t, func() bool {
		actor.mu.Lock()
		defer actor.mu.Unlock()
		return len(actor.order) == 1 && actor.order[0] == "preconnect:bob"
	}, time.Second, 10*time.Millisecond)
}

func TestLoginThenLogoutOrderedAndLoggedInFlag(t *testing.T) {
	actor := &fakeActor{}
	r, _ := startRouter(t, actor)

	login, err := actortypes.NewMessage(actortypes.KindLogin, actortypes.LoginRequest{Username: "alice"})
	require.NoError(t, err)
	r.EnqueueBrokerIngress(login)

	// Drain the forwarded Login response before enqueuing Logout so
	// ordering between the two handlers is unambiguous.
	<-r.UserEgress()

	logout, err := actortypes.NewMessage(actortypes.KindLogout, actortypes.LogoutRequest{Username: "alice"})
	require.NoError(t, err)
	r.EnqueueBrokerIngress(logout)

	require.Eventually(t, func() bool {
		actor.mu.Lock()
		defer actor.mu.Unlock()
		return len(actor.order) == 2
	}, time.Second, 10*time.Millisecond)

	actor.mu.Lock()
	defer actor.mu.Unlock()
	require.Equal(t, []string{"login:alice", "logout:alice"}, actor.order)
}
