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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePreconnectRequestLegacyAndCurrentAgree(t *testing.T) {
	current, err := DecodePreconnectRequest([]byte(`{"username":"bob","protocol":"rdp","ip":"1.2.3.4","hostname":"h","udsuser":"u"}`))
	require.NoError(t, err)

	legacy, err := DecodePreconnectRequest([]byte(`{"user":"bob","protocol":"rdp","ip":"1.2.3.4","hostname":"h","udsuser":"u"}`))
	require.NoError(t, err)

	require.Equal(t, current, legacy)
	require.Equal(t, "bob", legacy.Username)
}

func TestFoldLegacyOSFields(t *testing.T) {
	raw := map[string]interface{}{
		"username":     "administrator",
		"password":     "p1",
		"new_password": "p2",
		"ad":           "example.com",
		"ou":           "OU=Computers",
	}
	var os OSResponse
	FoldLegacyOSFields(raw, &os)

	require.Equal(t, "administrator", os.Custom["username"])
	require.Equal(t, "p1", os.Custom["password"])
	require.Equal(t, "p2", os.Custom["new_password"])
	require.Equal(t, "example.com", os.Custom["domain"])
	require.Equal(t, "OU=Computers", os.Custom["ou"])
	require.NotContains(t, os.Custom, "ad")
}

func TestUDSMessageRefusesToMarshalWithCallback(t *testing.T) {
	ch := make(chan LoginResponse, 1)
	msg := UDSMessage{Kind: KindLogin, Done: ch}
	_, err := json.Marshal(msg)
	require.Error(t, err)
}

func TestUDSMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(KindLog, LogRequest{Level: 3, Message: "hi"})
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded UDSMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, KindLog, decoded.Kind)

	var payload LogRequest
	require.NoError(t, json.Unmarshal(decoded.Data, &payload))
	require.Equal(t, LogRequest{Level: 3, Message: "hi"}, payload)
}
