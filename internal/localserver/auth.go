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
	"crypto/subtle"
	"errors"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// requireOwnAuthToken wraps a public handler so it only runs if the
// `:token` path segment matches s.ownAuthToken. OWN_AUTH_TOKEN is the sole
// authenticator for the public surface — there is no Authorization header.
func (s *Server) requireOwnAuthToken(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		got := p.ByName("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.ownAuthToken)) != 1 {
			writeError(w, http.StatusForbidden, errors.New("invalid token"))
			return
		}
		next(w, r, p)
	}
}

// requireLoopback wraps a private handler so it only runs for requests
// originating from 127.0.0.1 or ::1.
func requireLoopback(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			writeError(w, http.StatusForbidden, errors.New("private endpoint reachable only from loopback"))
			return
		}
		next(w, r, p)
	}
}
