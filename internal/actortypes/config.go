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

// Package actortypes holds the actor's wire and persisted data model:
// ActorConfiguration, InterfaceInfo, the UDSMessage tagged union, and the
// typed views over its payload.
package actortypes

// ActorKind is whether the broker assigns a stable identity at first
// contact (Managed) or per-user-service tokens at session time (Unmanaged).
type ActorKind string

const (
	Managed   ActorKind = "managed"
	Unmanaged ActorKind = "unmanaged"
)

// OSAction is the post-Initialize action the broker asked for.
type OSAction string

const (
	OSActionNone     OSAction = "none"
	OSActionUDSDone  OSAction = "udsdone"
	OSActionRename   OSAction = "rename"
	OSActionRenameAD OSAction = "rename_ad"
)

// DataConfig carries the rename/domain-join instructions handed out by
// Initialize.
type DataConfig struct {
	UniqueID string                 `json:"unique_id,omitempty"`
	OSAction OSAction               `json:"os_action,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Custom   map[string]interface{} `json:"custom,omitempty"`
}

// ActorConfiguration is the persistent identity of the actor, loaded once
// per boot by the Config Store and re-written only when it legitimately
// advances.
type ActorConfiguration struct {
	SchemaVersion       int         `json:"version"`
	ActorKind           ActorKind   `json:"actor_kind"`
	Token               string      `json:"token,omitempty"`
	Initialized         bool        `json:"initialized"`
	Host                string      `json:"host"`
	ValidateCertificate bool        `json:"validate_certificate"`
	RestrictNet         string      `json:"restrict_net,omitempty"`
	PreCommand          string      `json:"pre_command,omitempty"`
	RunonceCommand      string      `json:"runonce_command,omitempty"`
	PostCommand         string      `json:"post_command,omitempty"`
	LogLevel            int         `json:"log_level"`
	// LoginScript is the optional hook C2's ScriptOnLogin() exposes,
	// run by the lifecycle's session-login handling in Serving.
	LoginScript         string      `json:"login_script,omitempty"`
	DataConfig          *DataConfig `json:"data_config,omitempty"`
}

// IsNull reports whether the configuration is unusable: the actor refuses
// to serve without both a host and a token.
func (c ActorConfiguration) IsNull() bool {
	return c.Host == "" || c.Token == ""
}

// Clone returns a deep-enough copy for the Unmanaged "snapshot and restore"
// pattern (the config has no further nested pointers beyond DataConfig).
func (c ActorConfiguration) Clone() ActorConfiguration {
	clone := c
	if c.DataConfig != nil {
		dc := *c.DataConfig
		if c.DataConfig.Custom != nil {
			dc.Custom = make(map[string]interface{}, len(c.DataConfig.Custom))
			for k, v := range c.DataConfig.Custom {
				dc.Custom[k] = v
			}
		}
		clone.DataConfig = &dc
	}
	return clone
}
