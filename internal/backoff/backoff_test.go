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

package backoff

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func measure(ctx context.Context, clock clockwork.FakeClock, fn func() error) (time.Duration, error) {
	done := make(chan struct{})
	var dur time.Duration
	var err error
	go func() {
		before := clock.Now()
		err = fn()
		after := clock.Now()
		dur = after.Sub(before)
		close(done)
	}()
	clock.BlockUntil(1)
	for {
		clock.Advance(5 * time.Millisecond)
		runtime.Gosched()
		select {
		case <-done:
			return dur, err
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
	}
}

func TestSequenceDoublesAndCaps(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	clock := clockwork.NewFakeClock()
	initial := 8 * time.Second
	seq := NewSequenceWithClock(initial, 16, clock)

	wantFirst := initial
	dur, err := measure(ctx, clock, func() error { return seq.Do(ctx) })
	require.NoError(t, err)
	require.Equal(t, wantFirst, dur)

	wantSecond := 2 * initial
	dur, err = measure(ctx, clock, func() error { return seq.Do(ctx) })
	require.NoError(t, err)
	require.Equal(t, wantSecond, dur)

	// Keep retrying until the delay saturates at the cap.
	cap := initial * 16
	for i := 0; i < 10; i++ {
		dur, err = measure(ctx, clock, func() error { return seq.Do(ctx) })
		require.NoError(t, err)
	}
	require.Equal(t, cap, dur)
}

func TestSequenceCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := clockwork.NewFakeClock()
	seq := NewSequenceWithClock(time.Second, 4, clock)
	err := seq.Do(ctx)
	require.Error(t, err)
}
