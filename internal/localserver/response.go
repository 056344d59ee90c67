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

package localserver

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// responseEnvelope is the shape of every non-WebSocket response, matching
// the broker's own envelope so that clients speak one dialect regardless of
// which side they're talking to.
type responseEnvelope struct {
	Result  interface{} `json:"result"`
	Stamp   string      `json:"stamp"`
	Version string      `json:"version"`
	Error   *string     `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, result interface{}) {
	writeEnvelope(w, http.StatusOK, responseEnvelope{Result: result, Stamp: stamp(), Version: Version})
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	writeEnvelope(w, status, responseEnvelope{Stamp: stamp(), Version: Version, Error: &msg})
}

func writeEnvelope(w http.ResponseWriter, status int, env responseEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.WithError(err).Error("localserver: failed to encode response")
	}
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
