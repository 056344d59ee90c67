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

// InitializeResponse is the decoded body of the `initialize` broker
// endpoint, after folding legacy OS fields into os.custom.
type InitializeResponse struct {
	Token    string     `json:"token,omitempty"`
	UniqueID string     `json:"unique_id"`
	OS       OSResponse `json:"os"`
}

// OSResponse is the `os` sub-object of InitializeResponse.
type OSResponse struct {
	Action OSAction               `json:"action"`
	Name   string                 `json:"name"`
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// FoldLegacyOSFields folds the broker's legacy top-level OS fields
// (username, password, new_password, ad, ou) into os.custom, renaming
// ad -> domain, exactly as required before the response is used.
func FoldLegacyOSFields(raw map[string]interface{}, into *OSResponse) {
	legacyKeys := map[string]string{
		"username":     "username",
		"password":     "password",
		"new_password": "new_password",
		"ou":           "ou",
	}
	for wireKey, customKey := range legacyKeys {
		v, ok := raw[wireKey]
		if !ok {
			continue
		}
		if into.Custom == nil {
			into.Custom = make(map[string]interface{})
		}
		into.Custom[customKey] = v
	}
	if v, ok := raw["ad"]; ok {
		if into.Custom == nil {
			into.Custom = make(map[string]interface{})
		}
		into.Custom["domain"] = v
	}
}
