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

// Package platform is the actor's single capability contract over the
// host OS, implemented per target by internal/platform/linux and
// internal/platform/windows, selected at compile time by build tags.
// Grounded on native/abc.py's Operations ABC and its Linux/Windows
// concrete classes.
package platform

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/logger"
)

// Operations is the flat capability contract every platform implements.
// Every call returns a structured error category (internal/brokererr)
// rather than an OS-specific error code.
type Operations interface {
	IsAdmin(ctx context.Context) (bool, error)
	ComputerName(ctx context.Context) (string, error)
	ListInterfaces(ctx context.Context) ([]actortypes.InterfaceInfo, error)
	DomainName(ctx context.Context) (string, error)
	OSName(ctx context.Context) (string, error)
	OSVersion(ctx context.Context) (string, error)
	Reboot(ctx context.Context, flags int) error
	Logoff(ctx context.Context) error
	// RenameComputer changes the hostname, reporting whether a reboot is
	// required to take effect.
	RenameComputer(ctx context.Context, newName string) (needsReboot bool, err error)
	JoinDomain(ctx context.Context, custom map[string]interface{}) error
	ChangeUserPassword(ctx context.Context, user, oldPassword, newPassword string) error
	// IdleDuration reports how long the current session has been idle, or
	// nil when the platform cannot determine it (e.g. a Wayland session
	// with no idle-query protocol available).
	IdleDuration(ctx context.Context) (*time.Duration, error)
	CurrentUser(ctx context.Context) (string, error)
	SessionType(ctx context.Context) (string, error)
	ForceTimeSync(ctx context.Context) error
	ProtectFileOwnerOnly(ctx context.Context, path string) error
	SetProcessTitle(ctx context.Context, title string) error
}

// HLRename is the hl_rename high-level operation: an optional password
// change (logged, not fatal, on failure) followed by a rename, skipped
// entirely if the hostname already matches.
func HLRename(ctx context.Context, ops Operations, name, username, oldPassword, newPassword string) (needsReboot bool, err error) {
	if username != "" && newPassword != "" {
		if pwErr := ops.ChangeUserPassword(ctx, username, oldPassword, newPassword); pwErr != nil {
			logger.Get(ctx).WithError(pwErr).WithField("user", username).Error("could not change password for user")
		}
	}

	hostname, err := ops.ComputerName(ctx)
	if err != nil {
		return false, err
	}
	if strings.EqualFold(hostname, name) {
		return false, nil
	}
	return ops.RenameComputer(ctx, name)
}

// HLJoinDomain is the hl_join_domain high-level operation: short-circuits
// if the machine already belongs to the requested domain, otherwise renames
// first (reporting reboot-needed if the hostname changed) then joins, and
// forces a time sync afterward since a freshly-joined machine's clock skew
// is a common source of Kerberos auth failures. Platforms whose JoinDomain
// already folds the rename into one atomic step should treat a redundant
// RenameComputer call as a no-op.
func HLJoinDomain(ctx context.Context, ops Operations, name string, custom map[string]interface{}) (needsReboot bool, err error) {
	domain, _ := custom["domain"].(string)
	if domain != "" {
		if current, domErr := ops.DomainName(ctx); domErr == nil && current != "" && strings.EqualFold(current, domain) {
			return false, nil
		}
	}

	renamedNeedsReboot, err := HLRename(ctx, ops, name, "", "", "")
	if err != nil {
		return false, err
	}
	if err := ops.JoinDomain(ctx, custom); err != nil {
		return renamedNeedsReboot, err
	}
	if syncErr := ops.ForceTimeSync(ctx); syncErr != nil {
		logger.Get(ctx).WithError(syncErr).Warn("could not force time sync after domain join")
	}
	return true, nil
}

// FilterInterfaces narrows all to the ones InterfaceInfo.IsValid() accepts,
// further restricted to restrictNet when non-empty.
func FilterInterfaces(all []actortypes.InterfaceInfo, restrictNet string) []actortypes.InterfaceInfo {
	var subnet *net.IPNet
	if restrictNet != "" {
		if _, parsed, err := net.ParseCIDR(restrictNet); err == nil {
			subnet = parsed
		}
	}
	return actortypes.FilterInterfaces(all, subnet)
}
