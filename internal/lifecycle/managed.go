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
	"os/exec"
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/actorconfig"
	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/backoff"
	"github.com/gravitational/uds-actor/internal/broker"
	"github.com/gravitational/uds-actor/internal/brokererr"
	"github.com/gravitational/uds-actor/internal/certs"
	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/logger"
	"github.com/gravitational/uds-actor/internal/platform"
)

// managedFlavour implements flavour for ActorKind Managed, ported from
// managed.py's ManagedActorProcessor.
type managedFlavour struct {
	ops   platform.Operations
	store *actorconfig.Store
}

func (f *managedFlavour) initialize(ctx context.Context, cfg *actortypes.ActorConfiguration, client *broker.Client, _ []actortypes.InterfaceInfo, _ string) (certs.Info, bool, error) {
	if cfg.Initialized {
		return certs.Info{}, false, nil
	}

	bo := backoff.Decorr(consts.WaitRetry, consts.WaitRetry)
	var otherErrorLogged bool
	for {
		resp, err := client.Initialize(ctx)
		if err == nil {
			if resp.Token != "" && resp.Token != cfg.Token {
				cfg.Token = resp.Token
			}
			cfg.Initialized = true
			cfg.DataConfig = &actortypes.DataConfig{
				UniqueID: resp.UniqueID,
				OSAction: resp.OS.Action,
				Name:     resp.OS.Name,
				Custom:   resp.OS.Custom,
			}
			if werr := f.store.Write(*cfg); werr != nil {
				return certs.Info{}, false, trace.Wrap(werr)
			}
			return certs.Info{}, false, nil
		}

		entry := logger.Get(ctx).WithError(err)
		if brokererr.IsConnection(err) {
			entry.Warn("error validating with broker, retrying")
		} else {
			logOnce(&otherErrorLogged, entry, "unexpected error during initialize: %v", err)
		}

		if serr := bo.Do(ctx); serr != nil {
			return certs.Info{}, false, trace.Wrap(serr)
		}
	}
}

func (f *managedFlavour) configure(ctx context.Context, cfg *actortypes.ActorConfiguration) (bool, error) {
	if cfg.RunonceCommand != "" {
		runonce := cfg.RunonceCommand
		cfg.RunonceCommand = ""
		if err := f.store.Write(*cfg); err != nil {
			return false, trace.Wrap(err)
		}
		runShell(ctx, runonce)
		// The runonce command owns rebooting the machine; the actor's job
		// here ends regardless of whether it succeeded.
		return true, nil
	}

	budget := consts.Retries * consts.ConfigureRetryMultiplier
	var rebooted bool
	err := runWithBudget(ctx, budget, func() error {
		needsReboot, cerr := f.applyOSAction(ctx, cfg)
		if cerr != nil {
			return cerr
		}
		if needsReboot {
			rebooted = true
		}
		return nil
	})
	if err != nil {
		logger.Get(ctx).WithError(err).Error("could not configure machine, rebooting for recovery")
		if rerr := f.ops.Reboot(ctx, 0); rerr != nil {
			logger.Get(ctx).WithError(rerr).Error("reboot request itself failed")
		}
		return true, nil
	}
	if rebooted {
		if rerr := f.ops.Reboot(ctx, 0); rerr != nil {
			logger.Get(ctx).WithError(rerr).Error("reboot request itself failed")
		}
		return true, nil
	}

	if cfg.PostCommand != "" {
		post := cfg.PostCommand
		cfg.PostCommand = ""
		if err := f.store.Write(*cfg); err != nil {
			return false, trace.Wrap(err)
		}
		runShell(ctx, post)
	}
	return false, nil
}

// applyOSAction performs the one-shot os_action the broker asked for at
// Initialize, clearing it and persisting on success.
func (f *managedFlavour) applyOSAction(ctx context.Context, cfg *actortypes.ActorConfiguration) (needsReboot bool, err error) {
	if cfg.DataConfig == nil {
		return false, nil
	}
	custom := cfg.DataConfig.Custom

	switch cfg.DataConfig.OSAction {
	case actortypes.OSActionRename:
		username, _ := custom["username"].(string)
		oldPassword, _ := custom["password"].(string)
		newPassword, _ := custom["new_password"].(string)
		needsReboot, err = platform.HLRename(ctx, f.ops, cfg.DataConfig.Name, username, oldPassword, newPassword)
	case actortypes.OSActionRenameAD:
		needsReboot, err = platform.HLJoinDomain(ctx, f.ops, cfg.DataConfig.Name, custom)
	case actortypes.OSActionNone, actortypes.OSActionUDSDone, "":
		// Nothing to do.
	}
	if err != nil {
		return false, trace.Wrap(err)
	}

	cfg.DataConfig.OSAction = actortypes.OSActionNone
	if werr := f.store.Write(*cfg); werr != nil {
		return needsReboot, trace.Wrap(werr)
	}
	return needsReboot, nil
}

func (f *managedFlavour) notifyReady(ctx context.Context, cfg *actortypes.ActorConfiguration, client *broker.Client, ifaces []actortypes.InterfaceInfo, ownAuthToken string) (certs.Info, bool, error) {
	iface := selectServiceInterface(ifaces, cfg.DataConfig)

	budget := consts.Retries * consts.NotifyReadyRetryMultiplier
	var cert certs.Info
	var otherErrorLogged bool
	err := runWithBudget(ctx, budget, func() error {
		var cerr error
		cert, cerr = client.Ready(ctx, iface.IP, consts.ListenPort, ownAuthToken)
		if cerr != nil {
			logOnce(&otherErrorLogged, logger.Get(ctx).WithError(cerr), "error notifying broker of readiness")
		}
		return cerr
	})
	if err != nil {
		logger.Get(ctx).WithError(err).Error("could not notify broker of readiness, rebooting")
		if rerr := f.ops.Reboot(ctx, 0); rerr != nil {
			logger.Get(ctx).WithError(rerr).Error("reboot request itself failed")
		}
		return certs.Info{}, true, nil
	}
	return cert, false, nil
}

// selectServiceInterface picks the interface whose MAC matches the
// unique_id the broker handed out at Initialize, falling back to the
// first interface if none matches.
func selectServiceInterface(ifaces []actortypes.InterfaceInfo, dc *actortypes.DataConfig) actortypes.InterfaceInfo {
	if dc != nil && dc.UniqueID != "" {
		for _, iface := range ifaces {
			if strings.EqualFold(iface.MAC, dc.UniqueID) {
				return iface
			}
		}
	}
	return ifaces[0]
}

func runShell(ctx context.Context, command string) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	if err := cmd.Run(); err != nil {
		logger.Get(ctx).WithError(err).WithField("command", command).Warn("command execution failed")
	}
}
