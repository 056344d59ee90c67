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

// Process tracks every job spawned within it and exposes the cooperative
// stop/close semantics the actor's lifecycle relies on: Stop lets running
// jobs wind down, Close cancels them outright.
type Process struct {
	// doneCh closes once every tracked job has returned.
	doneCh <-chan struct{}
	spawn  func(Job, SpawnOptions)
	stop   func()
	cancel context.CancelFunc
}

type jobGroup struct {
	mu      sync.Mutex
	counter uint
	doneCh  chan struct{}
}

type processKey struct{}

// NewProcess creates a Process rooted at ctx. Cancelling ctx is equivalent
// to calling Close.
func NewProcess(ctx context.Context) *Process {
	var onStop sync.Map

	group := newJobGroup()
	ctx, cancel := context.WithCancel(ctx)
	process := &Process{
		doneCh: group.done(),
		cancel: cancel,
	}
	ctx = context.WithValue(ctx, processKey{}, process)

	process.spawn = func(job Job, opts SpawnOptions) {
		group.join()

		desc := &jobDescriptor{job: job}
		jobCtx, jcancel := context.WithCancel(ctx)
		if opts.Readiness != nil {
			jobCtx = context.WithValue(jobCtx, readinessKey{}, opts.Readiness)
		}
		jobCtx = context.WithValue(jobCtx, jobDescriptorKey{}, desc)
		stopCtx, stop := context.WithCancel(jobCtx)
		desc.stopCtx = stopCtx
		if !opts.stopped {
			onStop.Store(desc, FuncJob(func(context.Context) error {
				stop()
				return nil
			}))
		} else {
			stop()
		}
		result := opts.ResultSetter

		go func() {
			defer func() {
				jcancel()
				onStop.Delete(desc)
				group.leave()
			}()
			err := trace.Wrap(job.DoJob(jobCtx))
			if result != nil {
				result.SetError(err)
			}
			if err != nil && opts.Critical {
				process.Stop()
			}
		}()
	}

	var stopOnce sync.Once
	process.stop = func() {
		stopOnce.Do(func() {
			onStop.Range(func(desc, job interface{}) bool {
				onStop.Delete(desc)
				process.spawn(job.(FuncJob), SpawnOptions{stopped: true})
				return true
			})
			group.leave() // releases the implicit main job
		})
	}

	return process
}

// Done returns a channel closed once every job has returned.
func (p *Process) Done() <-chan struct{} {
	if p == nil {
		return alreadyDone
	}
	return p.doneCh
}

// Stop asks every running job to wind down. New jobs should not be spawned
// afterwards.
func (p *Process) Stop() {
	if p == nil {
		return
	}
	p.stop()
}

// Shutdown calls Stop and waits for completion or ctx expiring first.
func (p *Process) Shutdown(ctx context.Context) error {
	p.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Done():
		return nil
	}
}

// Close cancels every job immediately and waits for them to return.
func (p *Process) Close() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.doneCh
}

// GetProcess returns the process running the job in ctx, or nil outside one.
func GetProcess(ctx context.Context) *Process {
	if process, ok := ctx.Value(processKey{}).(*Process); ok {
		return process
	}
	return nil
}

// MustGetProcess returns the process running the job in ctx, panicking
// outside one.
func MustGetProcess(ctx context.Context) *Process {
	if process, ok := ctx.Value(processKey{}).(*Process); ok {
		return process
	}
	panic("job: not running inside a process context")
}

func newJobGroup() *jobGroup {
	return &jobGroup{
		doneCh:  make(chan struct{}),
		counter: 1, // the process itself holds the first slot
	}
}

func (g *jobGroup) join() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counter == 0 {
		panic("job: spawning on an already-finished process")
	}
	g.counter++
}

func (g *jobGroup) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counter == 0 {
		panic("job: decrementing a zero job counter")
	}
	g.counter--
	if g.counter == 0 {
		close(g.doneCh)
	}
}

func (g *jobGroup) done() <-chan struct{} {
	return g.doneCh
}
