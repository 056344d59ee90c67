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

import "encoding/json"

// LoginRequest is the typed view over a Login message's data.
type LoginRequest struct {
	Username    string `json:"username"`
	SessionType string `json:"session_type"`
}

// NullLoginRequest is the canonical null value of LoginRequest.
var NullLoginRequest = LoginRequest{}

// FromMap decodes a generic map into a LoginRequest.
func (LoginRequest) FromMap(m map[string]interface{}) LoginRequest {
	var r LoginRequest
	if v, ok := m["username"].(string); ok {
		r.Username = v
	}
	if v, ok := m["session_type"].(string); ok {
		r.SessionType = v
	}
	return r
}

// AsMap renders r as a generic map, e.g. for logging.
func (r LoginRequest) AsMap() map[string]interface{} {
	return map[string]interface{}{"username": r.Username, "session_type": r.SessionType}
}

// LoginResponse is what the actor's login handler returns, forwarded to
// the user-client and, for the private route, used as the HTTP response
// body too.
type LoginResponse struct {
	IP        string `json:"ip"`
	Hostname  string `json:"hostname"`
	DeadLine  int64  `json:"dead_line"`
	MaxIdle   int64  `json:"max_idle"`
	SessionID string `json:"session_id"`
}

// NullLoginResponse is the canonical null value of LoginResponse.
var NullLoginResponse = LoginResponse{}

func (r LoginResponse) AsMap() map[string]interface{} {
	return map[string]interface{}{
		"ip": r.IP, "hostname": r.Hostname, "dead_line": r.DeadLine,
		"max_idle": r.MaxIdle, "session_id": r.SessionID,
	}
}

// LogoutRequest is the typed view over a Logout message's data.
type LogoutRequest struct {
	Username    string `json:"username"`
	SessionType string `json:"session_type"`
	SessionID   string `json:"session_id"`
	FromBroker  bool   `json:"from_broker"`
}

// NullLogoutRequest is the canonical null value of LogoutRequest.
var NullLogoutRequest = LogoutRequest{}

func (LogoutRequest) FromMap(m map[string]interface{}) LogoutRequest {
	var r LogoutRequest
	if v, ok := m["username"].(string); ok {
		r.Username = v
	}
	if v, ok := m["session_type"].(string); ok {
		r.SessionType = v
	}
	if v, ok := m["session_id"].(string); ok {
		r.SessionID = v
	}
	if v, ok := m["from_broker"].(bool); ok {
		r.FromBroker = v
	}
	return r
}

func (r LogoutRequest) AsMap() map[string]interface{} {
	return map[string]interface{}{
		"username": r.Username, "session_type": r.SessionType,
		"session_id": r.SessionID, "from_broker": r.FromBroker,
	}
}

// LogRequest is the typed view over a Log message's data.
type LogRequest struct {
	Level   int    `json:"level"`
	Message string `json:"message"`
}

// NullLogRequest is the canonical null value of LogRequest.
var NullLogRequest = LogRequest{}

// PreconnectRequest is the typed view over a Preconnect message's data. It
// decodes both the current schema (`username`) and the legacy alias
// (`user`) to the same field.
type PreconnectRequest struct {
	Username string `json:"username"`
	Protocol string `json:"protocol"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	UDSUser  string `json:"udsuser"`
}

// NullPreconnectRequest is the canonical null value of PreconnectRequest.
var NullPreconnectRequest = PreconnectRequest{}

// legacyPreconnectRequest captures the pre-current wire shape where the
// username key was `user` instead of `username`.
type legacyPreconnectRequest struct {
	User     string `json:"user"`
	Protocol string `json:"protocol"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	UDSUser  string `json:"udsuser"`
}

// DecodePreconnectRequest accepts either schema and folds them to one
// structure, satisfying the legacy-alias round-trip property.
func DecodePreconnectRequest(data []byte) (PreconnectRequest, error) {
	var current PreconnectRequest
	if err := json.Unmarshal(data, &current); err == nil && current.Username != "" {
		return current, nil
	}

	var legacy legacyPreconnectRequest
	if err := json.Unmarshal(data, &legacy); err != nil {
		return PreconnectRequest{}, err
	}
	return PreconnectRequest{
		Username: legacy.User,
		Protocol: legacy.Protocol,
		IP:       legacy.IP,
		Hostname: legacy.Hostname,
		UDSUser:  legacy.UDSUser,
	}, nil
}

// ScriptRequest is the typed view over a Script message's data.
type ScriptRequest struct {
	Code   string `json:"code"`
	AsUser bool   `json:"as_user"`
}

// NullScriptRequest is the canonical null value of ScriptRequest.
var NullScriptRequest = ScriptRequest{}
