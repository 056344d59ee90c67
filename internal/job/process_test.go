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

package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/uds-actor/internal/job"
)

func TestProcessWaitsForAllJobs(t *testing.T) {
	p := job.NewProcess(context.Background())

	started := make(chan struct{})
	p.SpawnFunc(func(ctx context.Context) error {
		close(started)
		<-job.Stopped(ctx)
		return nil
	})

	<-started
	select {
	case <-p.Done():
		t.Fatal("process finished before jobs were stopped")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestCriticalJobStopsProcess(t *testing.T) {
	p := job.NewProcess(context.Background())

	boom := errors.New("boom")
	p.SpawnFunc(func(ctx context.Context) error {
		return boom
	}, job.Critical(true))

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("critical job failure did not stop the process")
	}
}

func TestReadinessGate(t *testing.T) {
	p := job.NewProcess(context.Background())
	readiness := &job.Readiness{}

	p.SpawnFunc(func(ctx context.Context) error {
		job.SetReady(ctx, true)
		<-job.Stopped(ctx)
		return nil
	}, job.WithReadiness(readiness))

	ok, err := readiness.WaitReady(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	p.Close()
}

func TestFutureResultCapturesError(t *testing.T) {
	p := job.NewProcess(context.Background())
	future := job.NewFutureResult()

	boom := errors.New("boom")
	p.SpawnFunc(func(ctx context.Context) error {
		return boom
	}, job.WithResult(future))

	<-future.Done()
	require.Error(t, future.Err())
	assert.Contains(t, future.Err().Error(), "boom")
}
