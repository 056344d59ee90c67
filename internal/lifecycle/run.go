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
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/job"
	"github.com/gravitational/uds-actor/internal/localserver"
	"github.com/gravitational/uds-actor/internal/logger"
	"github.com/gravitational/uds-actor/internal/platform"
	"github.com/gravitational/uds-actor/internal/router"
)

// run is the actor's main job: Boot, AwaitNetwork, Initialize, Configure,
// NotifyReady, Serving, Teardown, in that order. A clean exit at any state
// before Serving (null config, runonce command, a reboot just triggered)
// returns nil; once Serving starts, run only returns on a process-level
// Stop/Close or an unrecoverable failure of one of its critical children.
func (a *Actor) run(ctx context.Context) error {
	ctx, entry := logger.WithField(ctx, "run_id", uuid.NewString())

	cfg := a.store.Read()
	if cfg.IsNull() {
		entry.Info("no usable configuration on disk, nothing to do")
		job.SetReady(ctx, true)
		return nil
	}
	a.configSnapshot = cfg.Clone()

	ifaces, err := a.awaitNetwork(ctx, cfg.RestrictNet)
	if err != nil {
		return trace.Wrap(err)
	}

	ownAuthToken, err := newOwnAuthToken()
	if err != nil {
		return trace.Wrap(err)
	}
	a.ownAuthToken = ownAuthToken

	client := a.newBroker(cfg.Host, cfg.ValidateCertificate, cfg.Token)
	a.client = client

	flav, err := newFlavour(cfg.ActorKind, a.ops, a.store)
	if err != nil {
		return trace.Wrap(err)
	}
	a.flavour = flav

	cert, skipConfigure, err := flav.initialize(ctx, &cfg, client, ifaces, ownAuthToken)
	if err != nil {
		return trace.Wrap(err)
	}
	a.checkBrokerVersion(ctx)

	if !skipConfigure {
		exit, err := flav.configure(ctx, &cfg)
		if err != nil {
			return trace.Wrap(err)
		}
		if exit {
			entry.Info("configure requested process exit")
			return nil
		}

		readyCert, exit, err := flav.notifyReady(ctx, &cfg, client, ifaces, ownAuthToken)
		if err != nil {
			return trace.Wrap(err)
		}
		if exit {
			entry.Info("notify-ready exhausted its retry budget, exiting")
			return nil
		}
		cert = readyCert
	}

	tlsCert, err := localserver.EnsureCert(cert)
	if err != nil {
		return trace.Wrap(err)
	}

	a.cfg = &cfg
	a.router = router.New(a)
	a.server = localserver.New(localserver.Config{
		Listen:       localserver.ListenAddr(),
		OwnAuthToken: ownAuthToken,
		ActorKind:    string(cfg.ActorKind),
		StoredToken:  cfg.Token,
	}, tlsCert, a.router)

	return a.serve(ctx)
}

// awaitNetwork blocks until at least one usable interface is reported,
// retrying every WaitRetry. This state has no retry budget of its own:
// a machine with no network simply waits.
func (a *Actor) awaitNetwork(ctx context.Context, restrictNet string) ([]actortypes.InterfaceInfo, error) {
	ticker := time.NewTicker(consts.WaitRetry)
	defer ticker.Stop()

	for {
		all, err := a.ops.ListInterfaces(ctx)
		if err == nil {
			if filtered := platform.FilterInterfaces(all, restrictNet); len(filtered) > 0 {
				return filtered, nil
			}
		} else {
			logger.Get(ctx).WithError(err).Warn("could not list interfaces, retrying")
		}

		select {
		case <-job.Stopped(ctx):
			return nil, trace.Errorf("stopped while awaiting network")
		case <-ctx.Done():
			return nil, trace.Wrap(ctx.Err())
		case <-ticker.C:
		}
	}
}

// serve spawns the router and local server as critical jobs, declares
// readiness, then polls the stop signal once per second until told to
// stop.
func (a *Actor) serve(ctx context.Context) error {
	process := job.MustGetProcess(ctx)

	process.Spawn(a.router, job.Critical(true))
	process.Spawn(a.server, job.Critical(true))

	job.SetReady(ctx, true)
	logger.Get(ctx).Info("actor serving")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	stopped := job.Stopped(ctx)
	for {
		select {
		case <-stopped:
			logger.Get(ctx).Info("tearing down")
			return nil
		case <-ctx.Done():
			return trace.Wrap(ctx.Err())
		case <-ticker.C:
		}
	}
}
