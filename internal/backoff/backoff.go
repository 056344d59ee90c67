/*
Copyright 2021-2024 Gravitational, Inc.

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

// Package backoff provides the two delay strategies the actor needs: a
// decorrelated-jitter backoff for indefinite retries (Initialize), and a
// deterministic doubling sequence capped at a multiple of its base for the
// broker's fixed retry budgets (ready, ipchange, login, logout).
package backoff

import (
	"context"
	"math/rand"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

// Backoff sleeps for its next delay, or returns ctx.Err() if ctx ends first.
type Backoff interface {
	Do(ctx context.Context) error
}

type decorr struct {
	base, cap time.Duration
	clock     clockwork.Clock
	mu        decorrState
}

type decorrState struct {
	sleep time.Duration
}

// Decorr builds a decorrelated-jitter backoff bounded by [base, cap]: each
// call sleeps for a random duration in [base, 3×previous], capped at cap.
// Used for the indefinite Initialize retry loop.
func Decorr(base, cap time.Duration) Backoff {
	return &decorr{base: base, cap: cap, clock: clockwork.NewRealClock(), mu: decorrState{sleep: base}}
}

// NewDecorrWithClock is Decorr with an injectable clock, for deterministic
// tests.
func NewDecorrWithClock(base, cap time.Duration, clock clockwork.Clock) Backoff {
	return &decorr{base: base, cap: cap, clock: clock, mu: decorrState{sleep: base}}
}

func (d *decorr) Do(ctx context.Context) error {
	next := d.base + time.Duration(rand.Int63n(int64(3*d.mu.sleep-d.base+1)))
	if next > d.cap {
		next = d.cap
	}
	d.mu.sleep = next

	select {
	case <-d.clock.After(next):
		return nil
	case <-ctx.Done():
		return trace.Wrap(ctx.Err())
	}
}

// Sequence is the exponential retry strategy the broker's retryable
// endpoints use: delay(i) = initial · 2ⁱ, capped at capFactor·initial.
type Sequence struct {
	initial   time.Duration
	capFactor int
	clock     clockwork.Clock
	attempt   int
}

// NewSequence builds a Sequence with a real clock.
func NewSequence(initial time.Duration, capFactor int) *Sequence {
	return &Sequence{initial: initial, capFactor: capFactor, clock: clockwork.NewRealClock()}
}

// NewSequenceWithClock is NewSequence with an injectable clock.
func NewSequenceWithClock(initial time.Duration, capFactor int, clock clockwork.Clock) *Sequence {
	return &Sequence{initial: initial, capFactor: capFactor, clock: clock}
}

// Do sleeps for the next delay in the sequence and advances it.
func (s *Sequence) Do(ctx context.Context) error {
	delay := s.Peek()
	s.attempt++

	select {
	case <-s.clock.After(delay):
		return nil
	case <-ctx.Done():
		return trace.Wrap(ctx.Err())
	}
}

// Peek returns the delay the next Do call would use, without advancing.
func (s *Sequence) Peek() time.Duration {
	delay := s.initial * time.Duration(1<<uint(s.attempt))
	cap := s.initial * time.Duration(s.capFactor)
	if delay > cap {
		delay = cap
	}
	return delay
}

// Reset rewinds the sequence to its first delay.
func (s *Sequence) Reset() {
	s.attempt = 0
}
