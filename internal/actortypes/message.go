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

package actortypes

import (
	"encoding/json"

	"github.com/gravitational/trace"
)

// MessageKind is the tag of the UDSMessage union.
type MessageKind string

const (
	KindMessage    MessageKind = "message"
	KindScreenshot MessageKind = "screenshot"
	KindPreconnect MessageKind = "preconnect"
	KindScript     MessageKind = "script"
	KindLogin      MessageKind = "login"
	KindLogout     MessageKind = "logout"
	KindClose      MessageKind = "close"
	KindPing       MessageKind = "ping"
	KindPong       MessageKind = "pong"
	KindLog        MessageKind = "log"
	KindOk         MessageKind = "ok"
)

// UDSMessage is the envelope passed on the router's two queues and over the
// WebSocket. Done, if set, is fulfilled by the router once the message has
// been handled (used only by the private user_login route to await a
// LoginResponse synchronously); a message carrying it must never be
// marshaled.
type UDSMessage struct {
	Kind MessageKind     `json:"msg_type"`
	Data json.RawMessage `json:"data"`

	Done chan<- LoginResponse `json:"-"`
}

// MarshalJSON refuses to serialize a message that still carries a
// completion callback — such a message belongs to the private login flow
// and must never reach the wire.
func (m UDSMessage) MarshalJSON() ([]byte, error) {
	if m.Done != nil {
		return nil, trace.BadParameter("refusing to marshal a UDSMessage carrying a completion callback")
	}
	type alias UDSMessage
	return json.Marshal(alias(m))
}

// NewMessage builds a UDSMessage by encoding payload as its data.
func NewMessage(kind MessageKind, payload interface{}) (UDSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return UDSMessage{}, trace.Wrap(err)
	}
	return UDSMessage{Kind: kind, Data: data}, nil
}
