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
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/gravitational/uds-actor/internal/actortypes"
	"github.com/gravitational/uds-actor/internal/consts"
	"github.com/gravitational/uds-actor/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  consts.ClientMaxSize,
	WriteBufferSize: consts.ClientMaxSize,
	// The private surface is already loopback-gated; no browser Origin
	// check is meaningful for a local IPC socket.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and runs the reader/writer
// subtasks side by side. The connection ends when either one ends; its
// partner is cancelled. Stale user-egress messages survive a disconnect
// for the next connection to drain, except the ones this connection itself
// drains on entry.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Get(r.Context()).WithError(err).Warn("localserver: websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.drainStaleEgress()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wsWriter(ctx, conn)
	}()
	s.wsReader(ctx, conn)
	cancel()
	conn.Close()
	<-done
}

// drainStaleEgress discards any messages left on user-egress from a
// previous, now-disconnected WebSocket session so a fresh connection
// starts clean.
func (s *Server) drainStaleEgress() {
	for {
		select {
		case <-s.router.UserEgress():
		default:
			return
		}
	}
}

func (s *Server) wsReader(ctx context.Context, conn *websocket.Conn) {
	log := logger.Get(ctx)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg actortypes.UDSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Warn("localserver: websocket received malformed message")
			continue
		}

		switch msg.Kind {
		case actortypes.KindPing:
			pong, err := actortypes.NewMessage(actortypes.KindPong, struct{}{})
			if err != nil {
				continue
			}
			if err := writeWSMessage(conn, pong); err != nil {
				return
			}
		case actortypes.KindClose:
			closeMsg, err := actortypes.NewMessage(actortypes.KindLogout, actortypes.NullLogoutRequest)
			if err == nil {
				s.router.EnqueueBrokerIngress(closeMsg)
			}
			return
		default:
			s.router.EnqueueBrokerIngress(msg)
		}
	}
}

func (s *Server) wsWriter(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.router.UserEgress():
			if err := writeWSMessage(conn, msg); err != nil {
				return
			}
		}
	}
}

func writeWSMessage(conn *websocket.Conn, msg actortypes.UDSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
