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

// Package actorconfig persists ActorConfiguration to a single TOML
// document, atomically and owner-only readable. No available library
// offers atomic-replace-with-fsync semantics (peterbourgon/diskv writes
// one file per key with no such guarantee), so the write path is
// hand-rolled on top of os/io.
package actorconfig

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gravitational/trace"
	"github.com/pelletier/go-toml"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/consts"
)

// Store reads and writes ActorConfiguration to a single file path.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store backed by path. The file need not exist yet.
func New(path string) *Store {
	return &Store{path: path}
}

// document is the on-disk shape: a single "uds" table with the scalar
// fields inline and the two structured fields base64-of-JSON.
type document struct {
	UDS struct {
		Version             int    `toml:"version"`
		ActorKind           string `toml:"actor_kind"`
		Token               string `toml:"token"`
		Initialized         bool   `toml:"initialized"`
		Host                string `toml:"host"`
		ValidateCertificate bool   `toml:"validate_certificate"`
		RestrictNet         string `toml:"restrict_net"`
		PreCommand          string `toml:"pre_command"`
		RunonceCommand      string `toml:"runonce_command"`
		PostCommand         string `toml:"post_command"`
		LogLevel            int    `toml:"log_level"`
		LoginScript         string `toml:"login_script"`
		DataConfig          string `toml:"data_config"` // base64 JSON
	} `toml:"uds"`
}

// Read loads the configuration, returning a null ActorConfiguration on any
// error (missing file, bad TOML, bad blob, unmigratable schema) — the
// caller, not this package, decides whether a null config is fatal.
func (s *Store) Read() actortypes.ActorConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.read()
	if err != nil {
		return actortypes.ActorConfiguration{}
	}
	return cfg
}

func (s *Store) read() (actortypes.ActorConfiguration, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return actortypes.ActorConfiguration{}, trace.Wrap(err)
	}

	var doc document
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return actortypes.ActorConfiguration{}, trace.Wrap(err)
	}

	cfg := actortypes.ActorConfiguration{
		SchemaVersion:       doc.UDS.Version,
		ActorKind:           actortypes.ActorKind(doc.UDS.ActorKind),
		Token:               doc.UDS.Token,
		Initialized:         doc.UDS.Initialized,
		Host:                doc.UDS.Host,
		ValidateCertificate: doc.UDS.ValidateCertificate,
		RestrictNet:         doc.UDS.RestrictNet,
		PreCommand:          doc.UDS.PreCommand,
		RunonceCommand:      doc.UDS.RunonceCommand,
		PostCommand:         doc.UDS.PostCommand,
		LogLevel:            doc.UDS.LogLevel,
		LoginScript:         doc.UDS.LoginScript,
	}

	if doc.UDS.DataConfig != "" {
		blob, err := base64.StdEncoding.DecodeString(doc.UDS.DataConfig)
		if err != nil {
			return actortypes.ActorConfiguration{}, trace.Wrap(err, "decoding data_config blob")
		}
		var dc actortypes.DataConfig
		if err := json.Unmarshal(blob, &dc); err != nil {
			return actortypes.ActorConfiguration{}, trace.Wrap(err, "unmarshaling data_config")
		}
		cfg.DataConfig = &dc
	}

	if cfg.SchemaVersion != 0 && cfg.SchemaVersion != consts.ConfigVersion {
		// No migration path is known for any schema version but the
		// current one; yield a null config rather than guess.
		return actortypes.ActorConfiguration{}, trace.BadParameter("unsupported config schema version %#x", cfg.SchemaVersion)
	}
	return cfg, nil
}

// Write atomically replaces the configuration file: write to a tempfile in
// the same directory, fsync, restrict its permissions to the owner (0600),
// then rename it over the target.
func (s *Store) Write(cfg actortypes.ActorConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.SchemaVersion = consts.ConfigVersion

	var doc document
	doc.UDS.Version = cfg.SchemaVersion
	doc.UDS.ActorKind = string(cfg.ActorKind)
	doc.UDS.Token = cfg.Token
	doc.UDS.Initialized = cfg.Initialized
	doc.UDS.Host = cfg.Host
	doc.UDS.ValidateCertificate = cfg.ValidateCertificate
	doc.UDS.RestrictNet = cfg.RestrictNet
	doc.UDS.PreCommand = cfg.PreCommand
	doc.UDS.RunonceCommand = cfg.RunonceCommand
	doc.UDS.PostCommand = cfg.PostCommand
	doc.UDS.LogLevel = cfg.LogLevel
	doc.UDS.LoginScript = cfg.LoginScript

	if cfg.DataConfig != nil {
		blob, err := json.Marshal(cfg.DataConfig)
		if err != nil {
			return trace.Wrap(err)
		}
		doc.UDS.DataConfig = base64.StdEncoding.EncodeToString(blob)
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return trace.Wrap(err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".uds-actor-config-*.tmp")
	if err != nil {
		return trace.Wrap(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return trace.Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return trace.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return trace.Wrap(err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return trace.Wrap(err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

// ScriptOnLogin returns the configured login-hook path, if any.
func (s *Store) ScriptOnLogin() string {
	return s.Read().LoginScript
}
