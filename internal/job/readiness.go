/*
Copyright 2020-2024 Gravitational, Inc.

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

package job

import (
	"context"
	"sync"

	"github.com/gravitational/trace"
)

// Readiness lets one job signal "I'm up" and other jobs wait for it, e.g.
// the lifecycle's main job signals it once it has spawned the router and
// the local server, and Actor.WaitReady waits for it.
type Readiness struct {
	mu     sync.Mutex
	ready  bool
	doneCh chan struct{}
}

type readinessKey struct{}

var alreadyDone = make(chan struct{})

func init() {
	close(alreadyDone)
}

// SetReady records the readiness status of the job running in ctx, if it
// was spawned with a Readiness attached.
func SetReady(ctx context.Context, ready bool) {
	if readiness, ok := ctx.Value(readinessKey{}).(*Readiness); ok {
		readiness.setReady(ready)
	}
}

// IsReady reports the last status set via SetReady.
func (r *Readiness) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// WaitReady blocks until SetReady has been called at least once, or ctx is
// done first.
func (r *Readiness) WaitReady(ctx context.Context) (bool, error) {
	select {
	case <-r.Done():
		return r.IsReady(), nil
	case <-ctx.Done():
		return false, trace.Wrap(ctx.Err())
	}
}

// Done returns a channel closed once SetReady has been called at least once.
func (r *Readiness) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doneCh == nil {
		r.doneCh = make(chan struct{})
	}
	return r.doneCh
}

func (r *Readiness) setReady(ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ready = ready
	select {
	case <-r.doneCh:
	default:
		if r.doneCh != nil {
			close(r.doneCh)
		} else {
			r.doneCh = alreadyDone
		}
	}
}
