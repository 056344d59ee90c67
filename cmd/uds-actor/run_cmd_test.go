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

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeverityForLogLevel(t *testing.T) {
	require.Equal(t, "info", severityForLogLevel(0))
	require.Equal(t, "debug", severityForLogLevel(10))
	require.Equal(t, "info", severityForLogLevel(20))
	require.Equal(t, "warn", severityForLogLevel(30))
	require.Equal(t, "error", severityForLogLevel(40))
	require.Equal(t, "error", severityForLogLevel(50))
}
