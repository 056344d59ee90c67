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

package lifecycle

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actorconfig"
	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/backoff"
	"github.com/gravitational/uds-actor/internal/broker"
	"github.com/gravitational/uds-actor/internal/certs"
	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/logger"
	"github.com/gravitational/uds-actor/internal/platform"
)

// unmanagedFlavour implements flavour for ActorKind Unmanaged, ported from
// unmanaged.py's UnmanagedActorProcessor. Unlike Managed, it never persists
// the token exchange (the broker will hand out per-user-service tokens
// later) and skips Configure/NotifyReady entirely: the `unmanaged`
// endpoint already returns a usable certificate.
type unmanagedFlavour struct {
	ops   platform.Operations
	store *actorconfig.Store
}

// initialize only obtains the serving certificate via the unmanaged
// endpoint; the token-exchange `initialize` call happens later, once per
// login, in (*Actor).Login (see session.go), matching
// unmanaged.py's ActorProcessor split between `initialize` (here) and
// `initialize_flow_for_unmanaged` (per-login).
func (f *unmanagedFlavour) initialize(ctx context.Context, cfg *actortypes.ActorConfiguration, client *broker.Client, ifaces []actortypes.InterfaceInfo, ownAuthToken string) (certs.Info, bool, error) {
	iface := selectServiceInterface(ifaces, cfg.DataConfig)
	bo := backoff.Decorr(consts.WaitRetry, consts.WaitRetry)
	for {
		cert, err := client.Unmanaged(ctx, iface.IP, consts.ListenPort, ownAuthToken)
		if err == nil {
			return cert, true, nil
		}
		logger.Get(ctx).WithError(err).Warn("error obtaining certificate from broker, retrying")
		if serr := bo.Do(ctx); serr != nil {
			return certs.Info{}, false, trace.Wrap(serr)
		}
	}
}

func (f *unmanagedFlavour) configure(ctx context.Context, cfg *actortypes.ActorConfiguration) (bool, error) {
	// Never invoked: initialize reports skipConfigure=true for Unmanaged.
	return false, nil
}

func (f *unmanagedFlavour) notifyReady(ctx context.Context, cfg *actortypes.ActorConfiguration, client *broker.Client, ifaces []actortypes.InterfaceInfo, ownAuthToken string) (certs.Info, bool, error) {
	// Never invoked: initialize reports skipConfigure=true for Unmanaged.
	return certs.Info{}, false, nil
}
