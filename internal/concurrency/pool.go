// File: internal/concurrency/pool.go
// Package concurrency implements a NUMA-aware task pool with work-stealing.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool owns a fixed set of workers spread round-robin over the locality
// domains, routes submissions to per-worker bounded queues and drives the
// Running -> Draining/Terminating -> Stopped lifecycle.

package concurrency

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/numapool/api"
)

// Ensure compile-time interface compliance.
var _ api.Executor = (*Pool)(nil)

// State is the pool lifecycle state.
type State int32

const (
	StateConstructing State = iota
	StateRunning
	// StateDraining is entered by Shutdown.
	StateDraining
	// StateTerminating is entered by ShutdownNow.
	StateTerminating
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructing:
		return "constructing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminating:
		return "terminating"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Config holds pool parameters fixed at construction.
type Config struct {
	Workers       int           // number of workers, > 0
	QueueCapacity int           // per-worker queue bound, > 0
	IdleSleep     time.Duration // pause after an empty steal round; 0 yields instead

	// DrainOnShutdown makes Shutdown run every accepted task before the
	// workers exit. When false workers exit as soon as they observe the
	// stop signal and whatever is still queued is discarded.
	DrainOnShutdown bool
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	State     State
	Workers   int
	Domains   []int // domain of each worker, by index
	QueueLens []int // queued tasks of each worker, by index
	Submitted int64
	Completed int64 // includes tasks that panicked
	Panicked  int64
	Stolen    int64
	Rejected  int64
	Discarded int64
}

// Queued sums the per-worker queue lengths.
func (s Stats) Queued() int {
	n := 0
	for _, l := range s.QueueLens {
		n += l
	}
	return n
}

// Pool is a fixed-size work-stealing scheduler.
type Pool struct {
	cfg      Config
	locality api.Locality
	observer api.Observer

	workers       []*worker
	firstByDomain []int // first worker index per domain, -1 if none
	accept        func() error

	state atomic.Int32
	wg    sync.WaitGroup
	done  chan struct{}

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	stolen    atomic.Int64
	rejected  atomic.Int64
	discarded atomic.Int64
}

// New validates cfg, assigns worker domains and starts all workers.
// No worker is started when an error is returned.
func New(cfg Config, loc api.Locality, obs api.Observer) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, errors.WithStack(api.NewError(api.ErrCodeInvalidArgument,
			"number of workers must be greater than 0").WithContext("workers", cfg.Workers))
	}
	if cfg.QueueCapacity <= 0 {
		return nil, errors.WithStack(api.NewError(api.ErrCodeInvalidArgument,
			"queue capacity must be greater than 0").WithContext("capacity", cfg.QueueCapacity))
	}
	if loc == nil || !loc.IsAvailable() {
		return nil, errors.WithStack(api.NewError(api.ErrCodeUnavailable, "NUMA not available"))
	}
	domains := loc.DomainCount()
	if domains < 1 {
		return nil, errors.WithStack(api.NewError(api.ErrCodeUnavailable,
			"locality provider reported no domains").WithContext("domains", domains))
	}
	if obs == nil {
		obs = api.NopObserver{}
	}

	p := &Pool{
		cfg:           cfg,
		locality:      loc,
		observer:      obs,
		workers:       make([]*worker, cfg.Workers),
		firstByDomain: make([]int, domains),
		done:          make(chan struct{}),
	}
	p.accept = p.checkAccepting
	for d := range p.firstByDomain {
		p.firstByDomain[d] = -1
	}
	for i := range p.workers {
		domain := i % domains
		p.workers[i] = newWorker(p, i, domain)
		if p.firstByDomain[domain] < 0 {
			p.firstByDomain[domain] = i
		}
	}

	p.state.Store(int32(StateRunning))
	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		go w.run()
	}
	return p, nil
}

// Enqueue submits work to a randomly chosen worker.
func (p *Pool) Enqueue(work api.TaskFunc) error {
	return p.submit(api.NoHint, work)
}

// EnqueueOn submits work to the first worker bound to domain. Domains
// without a worker, and negative values, fall back to random placement.
// The hint only decides initial placement; a peer may steal the task.
func (p *Pool) EnqueueOn(domain int, work api.TaskFunc) error {
	return p.submit(domain, work)
}

func (p *Pool) submit(hint int, work api.TaskFunc) error {
	if work == nil {
		return p.reject(errors.Wrap(api.ErrInvalidArgument, "task cannot be nil"))
	}
	if err := p.checkAccepting(); err != nil {
		return p.reject(err)
	}
	target := p.route(hint)
	t := task{work: work, hint: hint, enqueued: time.Now()}
	if err := p.workers[target].queue.push(t, p.accept); err != nil {
		return p.reject(errors.Wrapf(err, "worker %d", target))
	}
	p.submitted.Add(1)
	return nil
}

// route picks the target worker index for a hint.
func (p *Pool) route(hint int) int {
	if hint >= 0 && hint < len(p.firstByDomain) {
		if idx := p.firstByDomain[hint]; idx >= 0 {
			return idx
		}
	}
	return rand.IntN(len(p.workers))
}

func (p *Pool) checkAccepting() error {
	if p.State() != StateRunning {
		return errors.WithStack(api.ErrPoolClosed)
	}
	return nil
}

func (p *Pool) reject(err error) error {
	p.rejected.Add(1)
	p.emit(api.Event{Kind: api.EventRejected, Worker: -1, Peer: -1, Err: err})
	return err
}

// Shutdown stops accepting tasks and blocks until every worker has exited.
// With DrainOnShutdown every accepted task runs before Shutdown returns;
// otherwise tasks still queued when the workers stop are discarded.
// Safe to call more than once and concurrently with ShutdownNow.
func (p *Pool) Shutdown() {
	p.stop(StateDraining)
}

// ShutdownNow stops accepting tasks, discards everything still queued and
// blocks until every worker has exited. Tasks already running complete.
func (p *Pool) ShutdownNow() {
	p.stop(StateTerminating)
}

func (p *Pool) stop(to State) {
	owner := p.state.CompareAndSwap(int32(StateRunning), int32(to))
	if to == StateTerminating {
		if !owner {
			p.state.CompareAndSwap(int32(StateDraining), int32(StateTerminating))
		}
		p.discard()
	}
	if !owner {
		<-p.done
		return
	}
	p.wg.Wait()
	// Leftovers are only possible without draining; nothing can run them now.
	p.discard()
	p.state.Store(int32(StateStopped))
	close(p.done)
}

// discard clears every queue, one lock at a time.
func (p *Pool) discard() {
	n := 0
	for _, w := range p.workers {
		n += w.queue.clear()
	}
	if n > 0 {
		p.discarded.Add(int64(n))
		p.emit(api.Event{Kind: api.EventDiscarded, Worker: -1, Peer: -1, Count: n})
	}
}

// Done is closed once the pool is stopped.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// State returns the current lifecycle state.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// NumWorkers returns the fixed worker count.
func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// DomainCount returns the number of locality domains the pool was built over.
func (p *Pool) DomainCount() int {
	return len(p.firstByDomain)
}

// Stats returns current counters and queue depths.
func (p *Pool) Stats() Stats {
	s := Stats{
		State:     p.State(),
		Workers:   len(p.workers),
		Domains:   make([]int, len(p.workers)),
		QueueLens: make([]int, len(p.workers)),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Stolen:    p.stolen.Load(),
		Rejected:  p.rejected.Load(),
		Discarded: p.discarded.Load(),
	}
	for i, w := range p.workers {
		s.Domains[i] = w.domain
		s.QueueLens[i] = w.queue.len()
	}
	return s
}

func (p *Pool) emit(e api.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	p.observer.Observe(e)
}
