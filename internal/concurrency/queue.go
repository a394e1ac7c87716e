// File: internal/concurrency/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded per-worker task deque. The owner takes from the front, thieves
// from the back, submitters append at the back.

package concurrency

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/momentics/numapool/api"
)

// workerQueue is a bounded double-ended task queue guarded by its own lock.
type workerQueue struct {
	mu       sync.Mutex
	tasks    deque.Deque[task]
	capacity int
}

func newWorkerQueue(capacity int) *workerQueue {
	return &workerQueue{capacity: capacity}
}

// push appends t unless the queue is full or accept reports false.
// accept runs under the queue lock.
func (q *workerQueue) push(t task, accept func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := accept(); err != nil {
		return err
	}
	if q.tasks.Len() >= q.capacity {
		return api.ErrQueueFull
	}
	q.tasks.PushBack(t)
	return nil
}

// popFront removes the oldest task. Used by the owning worker.
func (q *workerQueue) popFront() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tasks.Len() == 0 {
		return task{}, false
	}
	return q.tasks.PopFront(), true
}

// popBack removes the newest task. Used by stealing peers.
func (q *workerQueue) popBack() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tasks.Len() == 0 {
		return task{}, false
	}
	return q.tasks.PopBack(), true
}

// clear drops every queued task and returns how many were dropped.
func (q *workerQueue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.tasks.Len()
	q.tasks.Clear()
	return n
}

func (q *workerQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len()
}
