// File: internal/concurrency/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-worker scheduling loop: local pop, random steal, idle backoff.

package concurrency

import (
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/numapool/api"
)

// worker represents a single scheduler thread.
type worker struct {
	id     int
	domain int
	pool   *Pool
	queue  *workerQueue
	rng    *rand.Rand // owned by the worker goroutine only
}

func newWorker(p *Pool, id, domain int) *worker {
	return &worker{
		id:     id,
		domain: domain,
		pool:   p,
		queue:  newWorkerQueue(p.cfg.QueueCapacity),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), uint64(id))),
	}
}

// run starts the worker on the current goroutine. The goroutine stays locked
// to its OS thread until it returns, so the runtime retires a possibly pinned
// thread instead of handing it to other goroutines. When task work calls
// runtime.Goexit the goroutine cannot be kept; the worker continues on a
// fresh one, which locks and binds again.
func (w *worker) run() {
	stopped := false
	defer func() {
		if !stopped {
			go w.run()
			return
		}
		w.pool.wg.Done()
	}()
	runtime.LockOSThread()
	if err := w.pool.locality.BindCurrentThread(w.domain); err != nil {
		w.pool.emit(api.Event{Kind: api.EventPinFailed, Worker: w.id, Peer: -1, Domain: w.domain, Err: err})
	}
	w.loop()
	stopped = true
}

// loop schedules tasks until the pool state tells the worker to exit.
func (w *worker) loop() {
	for {
		switch w.pool.State() {
		case StateRunning:
		case StateDraining:
			if !w.pool.cfg.DrainOnShutdown || !w.sweep() {
				return
			}
			continue
		default:
			return
		}
		if w.runLocal() || w.steal() {
			continue
		}
		w.idle()
	}
}

// runLocal executes the oldest task of the worker's own queue.
func (w *worker) runLocal() bool {
	t, ok := w.queue.popFront()
	if !ok {
		return false
	}
	w.execute(t)
	return true
}

// steal makes up to N-1 random victim draws and runs the first task taken
// from the back of a peer queue. Draws may repeat; self draws are skipped.
func (w *worker) steal() bool {
	n := len(w.pool.workers)
	for i := 0; i < n-1; i++ {
		victim := w.rng.IntN(n)
		if victim == w.id {
			continue
		}
		if w.stealFrom(victim) {
			return true
		}
	}
	return false
}

// sweep runs one task from the own queue or, failing that, from the first
// non-empty peer in index order. It returns false once every queue was
// observed empty; during draining nothing can refill them.
func (w *worker) sweep() bool {
	if w.runLocal() {
		return true
	}
	n := len(w.pool.workers)
	for off := 1; off < n; off++ {
		if w.stealFrom((w.id + off) % n) {
			return true
		}
	}
	return false
}

func (w *worker) stealFrom(victim int) bool {
	t, ok := w.pool.workers[victim].queue.popBack()
	if !ok {
		return false
	}
	w.pool.stolen.Add(1)
	w.pool.emit(api.Event{Kind: api.EventStolen, Worker: w.id, Peer: victim, Domain: w.domain})
	w.execute(t)
	return true
}

// execute runs the task and updates statistics. Panics are recovered;
// runtime.Goexit is reported the same way before it unwinds the goroutine.
func (w *worker) execute(t task) {
	p := w.pool
	returned := false
	defer func() {
		var err error
		if r := recover(); r != nil {
			err = panicError(r)
		} else if !returned {
			err = errors.New("task called runtime.Goexit")
		}
		if err != nil {
			p.panicked.Add(1)
			p.emit(api.Event{Kind: api.EventTaskPanic, Worker: w.id, Peer: -1, Domain: w.domain, Err: err})
		}
		p.completed.Add(1)
	}()
	p.emit(api.Event{Kind: api.EventDispatched, Worker: w.id, Peer: -1, Domain: w.domain, Wait: time.Since(t.enqueued)})
	t.work()
	returned = true
}

func (w *worker) idle() {
	if d := w.pool.cfg.IdleSleep; d > 0 {
		time.Sleep(d)
		return
	}
	runtime.Gosched()
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "task panicked")
	}
	return errors.Errorf("task panicked: %v", r)
}
