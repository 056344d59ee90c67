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

package lifecycle_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/uds-actor/internal/actorconfig"
	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/broker"
	"github.com/gravitational/uds-actor/internal/lifecycle"
	"github.com/gravitational/uds-actor/internal/platform/fake"
)

// selfSignedPEM builds a throwaway certificate/key pair, returned as PEM,
// for both the fake broker's own TLS listener and the CertificateInfo it
// hands back from ready/unmanaged.
func selfSignedPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "uds-actor-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

// fakeBroker is a minimal stand-in for the broker's actor/v3 REST
// endpoints, recording every call it sees.
type fakeBroker struct {
	mu sync.Mutex

	initializeResp actortypes.InitializeResponse
	initializeErr  bool // when true, every initialize call 403s
	loginErr       bool // when true, every login call 500s
	readyErr       bool // when true, every ready call 500s

	initializeCalls []map[string]interface{}
	unmanagedCalls  []map[string]interface{}
	readyCalls      []map[string]interface{}
	loginCalls      []map[string]interface{}
	logoutCalls     []map[string]interface{}

	certPEM, keyPEM []byte
}

func newFakeBroker(t *testing.T) *fakeBroker {
	certPEM, keyPEM := selfSignedPEM(t)
	return &fakeBroker{certPEM: certPEM, keyPEM: keyPEM}
}

func (b *fakeBroker) certInfo() map[string]interface{} {
	return map[string]interface{}{
		"private_key":        string(b.keyPEM),
		"server_certificate": string(b.certPEM),
	}
}

func (b *fakeBroker) writeEnvelope(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":  result,
		"version": "3.1.0",
	})
}

func (b *fakeBroker) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/uds/rest/actor/v3/initialize", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.initializeCalls = append(b.initializeCalls, body)
		if b.initializeErr {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		resp := b.initializeResp
		b.writeEnvelope(w, map[string]interface{}{
			"token":     resp.Token,
			"unique_id": resp.UniqueID,
			"os": map[string]interface{}{
				"action": resp.OS.Action,
				"name":   resp.OS.Name,
				"custom": resp.OS.Custom,
			},
		})
	})

	mux.HandleFunc("/uds/rest/actor/v3/unmanaged", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.unmanagedCalls = append(b.unmanagedCalls, body)
		b.mu.Unlock()
		b.writeEnvelope(w, b.certInfo())
	})

	mux.HandleFunc("/uds/rest/actor/v3/ready", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.readyCalls = append(b.readyCalls, body)
		readyErr := b.readyErr
		b.mu.Unlock()
		if readyErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		b.writeEnvelope(w, b.certInfo())
	})

	mux.HandleFunc("/uds/rest/actor/v3/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.loginCalls = append(b.loginCalls, body)
		loginErr := b.loginErr
		b.mu.Unlock()
		if loginErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		b.writeEnvelope(w, map[string]interface{}{
			"ip": "10.0.0.9", "hostname": "host", "dead_line": 111, "max_idle": 900, "session_id": "S1",
		})
	})

	mux.HandleFunc("/uds/rest/actor/v3/logout", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.logoutCalls = append(b.logoutCalls, body)
		b.mu.Unlock()
		b.writeEnvelope(w, nil)
	})

	mux.HandleFunc("/uds/rest/actor/v3/log", func(w http.ResponseWriter, r *http.Request) {
		b.writeEnvelope(w, nil)
	})

	return mux
}

func (b *fakeBroker) start(t *testing.T) string {
	t.Helper()
	srv := httptest.NewTLSServer(b.handler())
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().String()
}

// newStore writes cfg to a fresh temp file and returns a Store over it.
func newStore(t *testing.T, cfg actortypes.ActorConfiguration) *actorconfig.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uds-actor.toml")
	store := actorconfig.New(path)
	require.NoError(t, store.Write(cfg))
	return store
}

func newTestBroker(host string) func(host2 string, validateCertificate bool, token string) *broker.Client {
	return func(_ string, _ bool, token string) *broker.Client {
		return broker.New(broker.Config{
			Host: host, ValidateCertificate: false, Token: token, UserAgent: "uds-actor-test",
		})
	}
}

func baseOps() *fake.Operations {
	ops := fake.New("test-host")
	ops.Interfaces = []actortypes.InterfaceInfo{
		{Name: "eth0", MAC: "aa:bb:cc:dd:ee:ff", IP: "10.1.2.3"},
	}
	return ops
}

func runActor(t *testing.T, a *lifecycle.Actor) (ctx context.Context, cancel context.CancelFunc, done chan error) {
	t.Helper()
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	done = make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return ctx, cancel, done
}

func waitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to appear", path)
}
