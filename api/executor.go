// Package api
// Author: momentics
//
// Executor contract for locality-aware parallel task dispatch.

package api

// TaskFunc is an opaque unit of work. Its panics are isolated by the executor.
type TaskFunc func()

// Executor abstracts a fixed pool of workers accepting asynchronous tasks.
type Executor interface {
	// Enqueue schedules task on any worker.
	Enqueue(task TaskFunc) error

	// EnqueueOn schedules task preferring a worker bound to domain.
	EnqueueOn(domain int, task TaskFunc) error

	// NumWorkers returns the fixed worker count.
	NumWorkers() int

	// Shutdown stops accepting work and waits for all workers to exit.
	Shutdown()

	// ShutdownNow discards queued work, then waits for all workers to exit.
	ShutdownNow()
}
