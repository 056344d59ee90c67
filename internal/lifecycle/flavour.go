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
	"github.com/gravitational/uds-actor/internal/broker"
	"github.com/gravitational/uds-actor/internal/certs"
	"github.com/gravitational/uds-actor/internal/platform"
)

// flavour is the one pluggable seam between Managed and Unmanaged: the
// outer Boot->AwaitNetwork->...->Teardown shape is shared, only Initialize
// (and, for Managed only, Configure/NotifyReady) differ — the same "one
// outer shape, pluggable inner step" split access/slack and access/discord
// take over access/common.
type flavour interface {
	// initialize runs the Initialize state to completion (retrying
	// indefinitely on failure, per spec). It returns a certificate when
	// the flavour has nothing left to do before Serving (Unmanaged), in
	// which case skipConfigure is true and the caller proceeds straight
	// to Serving; otherwise cert is zero and the caller continues through
	// Configure and NotifyReady.
	initialize(ctx context.Context, cfg *actortypes.ActorConfiguration, client *broker.Client, ifaces []actortypes.InterfaceInfo, ownAuthToken string) (cert certs.Info, skipConfigure bool, err error)

	// configure runs Configure+MaybeReboot. exit is true when the actor
	// must terminate the process now (runonce command, or a reboot was
	// just triggered) without reaching NotifyReady.
	configure(ctx context.Context, cfg *actortypes.ActorConfiguration) (exit bool, err error)

	// notifyReady runs NotifyReady: announce the actor and obtain the
	// serving certificate. exit is true when the retry budget was
	// exhausted and a reboot was triggered.
	notifyReady(ctx context.Context, cfg *actortypes.ActorConfiguration, client *broker.Client, ifaces []actortypes.InterfaceInfo, ownAuthToken string) (cert certs.Info, exit bool, err error)
}

func newFlavour(kind actortypes.ActorKind, ops platform.Operations, store *actorconfig.Store) (flavour, error) {
	switch kind {
	case actortypes.Managed:
		return &managedFlavour{ops: ops, store: store}, nil
	case actortypes.Unmanaged:
		return &unmanagedFlavour{ops: ops, store: store}, nil
	default:
		return nil, trace.BadParameter("unknown actor kind %q", kind)
	}
}
