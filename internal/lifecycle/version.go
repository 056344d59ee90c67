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

	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/logger"
	"github.com/gravitational/uds-actor/pkg/version"
)

// checkBrokerVersion warns, but never fails Boot, if the broker that just
// answered a call reports a version below MinBrokerVersion. Adapted from
// access/webhooks/app.go's checkTeleportVersion/lib/versions.go's
// AssertServerVersion, retargeted from a hard Ping precondition to a
// best-effort warning: unlike a Teleport Auth server, the broker never
// refuses to talk to an old actor, so there's nothing to abort for.
func (a *Actor) checkBrokerVersion(ctx context.Context) {
	reported := a.client.LastVersion()
	if reported == "" {
		return
	}

	if err := version.AssertBrokerVersion(reported, consts.MinBrokerVersion); err != nil {
		logger.Get(ctx).WithField("broker_version", reported).WithError(err).Warn("broker version check failed")
	}
}
