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
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/uds-actor/internal/broker"
)

func clientReporting(t *testing.T, version string) *broker.Client {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":null,"version":"` + version + `"}`))
	}))
	t.Cleanup(srv.Close)

	c := broker.New(broker.Config{Host: srv.Listener.Addr().String(), ValidateCertificate: false})
	require.NoError(t, c.Test(context.Background()))
	return c
}

func TestCheckBrokerVersionWarnsBelowMinimum(t *testing.T) {
	hook := logtest.NewGlobal()
	log.SetLevel(log.WarnLevel)

	a := &Actor{client: clientReporting(t, "2.9.0")}
	a.checkBrokerVersion(context.Background())

	require.NotEmpty(t, hook.AllEntries())
	last := hook.LastEntry()
	require.Equal(t, log.WarnLevel, last.Level)
	require.Equal(t, "2.9.0", last.Data["broker_version"])
}

func TestCheckBrokerVersionSilentAboveMinimum(t *testing.T) {
	hook := logtest.NewGlobal()
	log.SetLevel(log.WarnLevel)

	a := &Actor{client: clientReporting(t, "3.0.0")}
	a.checkBrokerVersion(context.Background())

	for _, entry := range hook.AllEntries() {
		require.NotEqual(t, log.WarnLevel, entry.Level)
	}
}

func TestCheckBrokerVersionNoCallYet(t *testing.T) {
	hook := logtest.NewGlobal()

	a := &Actor{client: broker.New(broker.Config{Host: "127.0.0.1:0"})}
	a.checkBrokerVersion(context.Background())

	require.Empty(t, hook.AllEntries())
}
