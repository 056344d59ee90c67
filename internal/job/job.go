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

// Package job is the actor's async runtime: a Process spawns jobs as
// goroutines, and every job can be marked critical (its
// failure stops the whole process) or carry a Readiness gate that other
// jobs can wait on before proceeding.
package job

import "context"

// Job is anything that can run to completion or fail.
type Job interface {
	DoJob(context.Context) error
}

// FuncJob adapts a plain function into a Job.
type FuncJob func(context.Context) error

// DoJob executes the function.
func (j FuncJob) DoJob(ctx context.Context) error {
	return j(ctx)
}

// GetJob returns the job running in ctx, or nil outside of one.
func GetJob(ctx context.Context) Job {
	if desc, ok := getJobDescriptor(ctx); ok {
		return desc.job
	}
	return nil
}

// MustGetJob returns the job running in ctx, panicking outside of one.
func MustGetJob(ctx context.Context) Job {
	return mustGetJobDescriptor(ctx).job
}

// Stopped returns a channel closed once the job (or the whole process) has
// been told to stop. A job's DoJob loop should select on it alongside its
// own work.
func Stopped(ctx context.Context) <-chan struct{} {
	if desc, ok := getJobDescriptor(ctx); ok {
		return desc.stopCtx.Done()
	}
	return nil
}
