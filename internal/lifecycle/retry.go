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

package lifecycle

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/backoff"
	"github.com/gravitational/uds-actor/internal/consts"
)

// runWithBudget runs fn up to budget times, sleeping the backoff's delay
// sequence between attempts, returning nil on the first success, the last
// error once the budget is exhausted, or the context's error if ctx ends
// during a backoff sleep. This is the outer, state-level
// retry budget attached to Configure (4×) and NotifyReady (10×), layered
// above whatever per-call retry the broker client itself already performs.
func runWithBudget(ctx context.Context, budget int, fn func() error) error {
	seq := backoff.NewSequence(consts.RetryInitialDelay, consts.RetryDelayCapFactor)

	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == budget {
			break
		}
		if err := seq.Do(ctx); err != nil {
			return trace.Wrap(err)
		}
	}
	return lastErr
}
