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

package platform_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/platform"
	"github.com/gravitational/uds-actor/internal/platform/fake"
)

func TestHLRenameSkipsWhenHostnameAlreadyMatches(t *testing.T) {
	ops := fake.New("DESK-01")
	needsReboot, err := platform.HLRename(context.Background(), ops, "desk-01", "", "", "")
	require.NoError(t, err)
	require.False(t, needsReboot)
	require.Empty(t, ops.RenameCalls)
}

func TestHLRenameRenamesAndReportsReboot(t *testing.T) {
	ops := fake.New("OLD-NAME")
	ops.RenameNeedsReboot = true
	needsReboot, err := platform.HLRename(context.Background(), ops, "NEW-NAME", "", "", "")
	require.NoError(t, err)
	require.True(t, needsReboot)
	require.Equal(t, []string{"NEW-NAME"}, ops.RenameCalls)
}

func TestHLRenameChangesPasswordButToleratesFailure(t *testing.T) {
	ops := fake.New("DESK-01")
	ops.PasswordErr = net.ErrClosed
	_, err := platform.HLRename(context.Background(), ops, "desk-01", "alice", "old", "new")
	require.NoError(t, err)
	require.Len(t, ops.PasswordSets, 1)
	require.Equal(t, "alice", ops.PasswordSets[0].User)
}

func TestHLJoinDomainRenamesThenJoins(t *testing.T) {
	ops := fake.New("OLD-NAME")
	ops.RenameNeedsReboot = true
	needsReboot, err := platform.HLJoinDomain(context.Background(), ops, "NEW-NAME", map[string]interface{}{"domain": "example.com"})
	require.NoError(t, err)
	require.True(t, needsReboot)
	require.Equal(t, []string{"NEW-NAME"}, ops.RenameCalls)
	require.Len(t, ops.JoinCalls, 1)
	require.Equal(t, "example.com", ops.JoinCalls[0]["domain"])
	require.Equal(t, 1, ops.TimeSyncCalls)
}

func TestHLJoinDomainSkipsWhenAlreadyJoined(t *testing.T) {
	ops := fake.New("DESK-01")
	ops.Domain = "example.com"
	needsReboot, err := platform.HLJoinDomain(context.Background(), ops, "NEW-NAME", map[string]interface{}{"domain": "example.com"})
	require.NoError(t, err)
	require.False(t, needsReboot)
	require.Empty(t, ops.RenameCalls)
	require.Empty(t, ops.JoinCalls)
	require.Zero(t, ops.TimeSyncCalls)
}

func TestHLJoinDomainToleratesTimeSyncFailure(t *testing.T) {
	ops := fake.New("OLD-NAME")
	ops.TimeSyncErr = net.ErrClosed
	needsReboot, err := platform.HLJoinDomain(context.Background(), ops, "NEW-NAME", map[string]interface{}{"domain": "example.com"})
	require.NoError(t, err)
	require.True(t, needsReboot)
	require.Equal(t, 1, ops.TimeSyncCalls)
}

func TestFilterInterfacesDropsLinkLocalAndAppliesRestrictNet(t *testing.T) {
	all := []actortypes.InterfaceInfo{
		{Name: "eth0", MAC: "AA:BB:CC:DD:EE:FF", IP: "10.0.0.5"},
		{Name: "eth1", MAC: "AA:BB:CC:DD:EE:00", IP: "169.254.1.2"},
		{Name: "eth2", MAC: "AA:BB:CC:DD:EE:01", IP: "10.0.1.5"},
	}
	filtered := platform.FilterInterfaces(all, "10.0.0.0/24")
	require.Len(t, filtered, 1)
	require.Equal(t, "eth0", filtered[0].Name)
}
