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
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/gravitational/uds-actor/internal/actortypes"
)

// registerPublicRoutes wires the broker-facing `/actor/:token/:method`
// surface. The HTTP verb and the `:method` segment together select the
// handler, matching §4.5's table.
func (s *Server) registerPublicRoutes(rh *httprouter.Router) {
	rh.GET("/actor/:token/:method", s.requireOwnAuthToken(s.publicGET))
	rh.POST("/actor/:token/:method", s.requireOwnAuthToken(s.publicPOST))
}

func (s *Server) publicGET(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	switch p.ByName("method") {
	case "information":
		writeResult(w, fmt.Sprintf("UDS Actor v%s", Version))
	case "uuid":
		if s.actorKind == "managed" {
			writeResult(w, s.storedToken)
		} else {
			writeResult(w, "")
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) publicPOST(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	switch p.ByName("method") {
	case "preconnect", "preConnect":
		s.handlePreconnect(w, r)
	case "logout":
		s.handlePublicLogout(w, r)
	case "message":
		s.handlePublicMessage(w, r)
	case "screenshot":
		s.handlePublicScreenshot(w, r)
	case "script":
		s.handlePublicScript(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handlePreconnect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := actortypes.DecodePreconnectRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := actortypes.NewMessage(actortypes.KindPreconnect, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.router.EnqueueBrokerIngress(msg)
	writeResult(w, "Ok")
}

func (s *Server) handlePublicLogout(w http.ResponseWriter, r *http.Request) {
	msg, err := actortypes.NewMessage(actortypes.KindLogout, actortypes.LogoutRequest{FromBroker: true})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.router.EnqueueUserEgress(msg)
	writeResult(w, "Ok")
}

func (s *Server) handlePublicMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg := actortypes.UDSMessage{Kind: actortypes.KindMessage, Data: json.RawMessage(body)}
	s.router.EnqueueUserEgress(msg)
	writeResult(w, "Ok")
}

func (s *Server) handlePublicScreenshot(w http.ResponseWriter, r *http.Request) {
	msg, err := actortypes.NewMessage(actortypes.KindScreenshot, struct{}{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.router.EnqueueUserEgress(msg)
	writeResult(w, "Ok")
}

func (s *Server) handlePublicScript(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req actortypes.ScriptRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := actortypes.NewMessage(actortypes.KindScript, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// as_user routing happens in the router's dispatch table (§4.4); this
	// handler only ever enqueues on broker-ingress.
	s.router.EnqueueBrokerIngress(msg)
	writeResult(w, "Ok")
}
