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
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/consts"
)

// registerPrivateRoutes wires the loopback-only, user-client-facing
// surface. No token check applies; requireLoopback is the sole guard.
func (s *Server) registerPrivateRoutes(rh *httprouter.Router) {
	rh.POST("/private/user_login", requireLoopback(s.handleUserLogin))
	rh.POST("/private/user_logout", requireLoopback(s.handleUserLogout))
	rh.POST("/private/log", requireLoopback(s.handlePrivateLog))
	rh.GET("/private/ws", requireLoopback(s.handleWebSocket))
}

func (s *Server) handleUserLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req actortypes.LoginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	done := make(chan actortypes.LoginResponse, 1)
	msg, err := actortypes.NewMessage(actortypes.KindLogin, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	msg.Done = done
	s.router.EnqueueBrokerIngress(msg)

	ctx, cancel := context.WithTimeout(r.Context(), consts.Timeout)
	defer cancel()

	select {
	case resp := <-done:
		writeResult(w, resp)
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, ctx.Err())
	}
}

func (s *Server) handleUserLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req actortypes.LogoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := actortypes.NewMessage(actortypes.KindLogout, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.router.EnqueueBrokerIngress(msg)
	writeResult(w, "Ok")
}

func (s *Server) handlePrivateLog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req actortypes.LogRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := actortypes.NewMessage(actortypes.KindLog, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.router.EnqueueBrokerIngress(msg)
	writeResult(w, "Ok")
}
