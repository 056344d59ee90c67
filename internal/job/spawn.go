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

import "context"

// SpawnOptions configures how Process.Spawn runs a job.
type SpawnOptions struct {
	// Critical jobs stop the whole process if they return an error.
	Critical bool
	// Readiness, if set, is attached to the job's context.
	Readiness *Readiness
	// ResultSetter, if set, receives the job's final error.
	ResultSetter ResultSetter

	stopped bool
}

// SpawnOption mutates SpawnOptions.
type SpawnOption func(*SpawnOptions)

// Critical marks a job critical: its failure stops the process.
func Critical(critical bool) SpawnOption {
	return func(opts *SpawnOptions) {
		opts.Critical = critical
	}
}

// WithReadiness attaches a Readiness gate to the spawned job.
func WithReadiness(readiness *Readiness) SpawnOption {
	return func(opts *SpawnOptions) {
		opts.Readiness = readiness
	}
}

// WithResult attaches a ResultSetter that receives the job's final error.
func WithResult(setter ResultSetter) SpawnOption {
	return func(opts *SpawnOptions) {
		opts.ResultSetter = setter
	}
}

// Spawn runs job as a goroutine tracked by the process.
func (p *Process) Spawn(job Job, opts ...SpawnOption) {
	if p == nil {
		panic("job: spawning on a nil process")
	}
	var options SpawnOptions
	for _, opt := range opts {
		opt(&options)
	}
	p.spawn(job, options)
}

// SpawnFunc runs fn as a goroutine tracked by the process.
func (p *Process) SpawnFunc(fn func(ctx context.Context) error, opts ...SpawnOption) {
	p.Spawn(FuncJob(fn), opts...)
}
