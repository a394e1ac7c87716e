// File: facade/numapool.go
// Unified facade layer for the numapool library.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Pool type, which wires the work-stealing scheduler
// core to its ambient services: locality provider, structured logging,
// Prometheus metrics, the recent-event journal and debug probes.

package facade

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/numapool/adapters"
	"github.com/momentics/numapool/affinity"
	"github.com/momentics/numapool/api"
	"github.com/momentics/numapool/control"
	"github.com/momentics/numapool/internal/concurrency"
)

// Stats is a point-in-time snapshot of pool counters.
type Stats = concurrency.Stats

// State is the pool lifecycle state.
type State = concurrency.State

const (
	StateRunning     = concurrency.StateRunning
	StateDraining    = concurrency.StateDraining
	StateTerminating = concurrency.StateTerminating
	StateStopped     = concurrency.StateStopped
)

// Config holds parameters immutable per pool.
type Config struct {
	Workers         int           // Number of worker threads
	QueueCapacity   int           // Per-worker queue bound
	IdleSleep       time.Duration // Pause of an idle worker between steal rounds
	DrainOnShutdown bool          // Shutdown runs every accepted task before returning
	JournalSize     int           // Recent events kept for DumpState
	EnableMetrics   bool          // Register Prometheus instruments
	EnableDebug     bool          // Register debug probes
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Workers:         runtime.NumCPU(),
		QueueCapacity:   1000,
		IdleSleep:       50 * time.Microsecond,
		DrainOnShutdown: true,
		JournalSize:     256,
		EnableMetrics:   true,
		EnableDebug:     true,
	}
}

// Pool is the public work-stealing scheduler.
type Pool struct {
	pool     *concurrency.Pool
	config   *Config
	log      *slog.Logger
	locality api.Locality
	journal  *control.Journal
	debug    *control.DebugProbes
}

// Ensure compliance with the api contracts.
var (
	_ api.Executor = (*Pool)(nil)
	_ api.Debug    = (*Pool)(nil)
)

// New constructs and starts a Pool. Without WithLocality the host NUMA
// topology is used and construction fails where it cannot be detected.
func New(cfg *Config, opts ...Option) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locality == nil {
		o.locality = affinity.NewSystem()
	}

	p := &Pool{
		config:   cfg,
		log:      o.logger,
		locality: o.locality,
		journal:  control.NewJournal(cfg.JournalSize),
		debug:    control.NewDebugProbes(),
	}
	var metrics *control.Metrics
	observers := []api.Observer{control.NewLogObserver(p.log), p.journal}
	if cfg.EnableMetrics {
		metrics = control.NewMetrics()
		observers = append(observers, metrics)
	}
	observers = append(observers, o.observers...)

	inner, err := concurrency.New(concurrency.Config{
		Workers:         cfg.Workers,
		QueueCapacity:   cfg.QueueCapacity,
		IdleSleep:       cfg.IdleSleep,
		DrainOnShutdown: cfg.DrainOnShutdown,
	}, o.locality, adapters.Multi(observers...))
	if err != nil {
		return nil, errors.Wrap(err, "numapool: create pool")
	}
	p.pool = inner

	if metrics != nil {
		reg := o.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		if err := p.registerMetrics(reg, metrics); err != nil {
			inner.ShutdownNow()
			return nil, err
		}
	}
	if cfg.EnableDebug {
		p.registerProbes()
	}

	p.log.Info("numapool started",
		"workers", inner.NumWorkers(),
		"domains", inner.DomainCount(),
		"queue_capacity", cfg.QueueCapacity,
		"drain_on_shutdown", cfg.DrainOnShutdown)
	return p, nil
}

func (p *Pool) registerMetrics(reg prometheus.Registerer, m *control.Metrics) error {
	if err := m.Register(reg); err != nil {
		return err
	}
	queued := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "numapool",
		Name:      "queued_tasks",
		Help:      "Tasks waiting in worker queues.",
	}, func() float64 {
		return float64(p.pool.Stats().Queued())
	})
	if err := reg.Register(queued); err != nil {
		m.Unregister(reg)
		return errors.Wrap(err, "metrics: register queued_tasks")
	}
	return nil
}

func (p *Pool) registerProbes() {
	control.RegisterPlatformProbes(p.debug, p.locality)
	p.debug.RegisterProbe("pool.state", func() any {
		return p.pool.State().String()
	})
	p.debug.RegisterProbe("pool.stats", func() any {
		return p.pool.Stats()
	})
	p.debug.RegisterProbe("pool.journal", func() any {
		return p.journal.Recent()
	})
}

// Enqueue submits task to a random worker.
func (p *Pool) Enqueue(task api.TaskFunc) error {
	return p.pool.Enqueue(task)
}

// EnqueueOn submits task to the first worker bound to domain.
func (p *Pool) EnqueueOn(domain int, task api.TaskFunc) error {
	return p.pool.EnqueueOn(domain, task)
}

// NumWorkers returns the fixed worker count.
func (p *Pool) NumWorkers() int {
	return p.pool.NumWorkers()
}

// DomainCount returns the number of locality domains in use.
func (p *Pool) DomainCount() int {
	return p.pool.DomainCount()
}

// Shutdown stops intake and waits for all workers; see Config.DrainOnShutdown.
func (p *Pool) Shutdown() {
	p.log.Info("numapool shutting down", "mode", "graceful")
	p.pool.Shutdown()
	p.logStopped()
}

// ShutdownNow discards queued tasks and waits for all workers.
func (p *Pool) ShutdownNow() {
	p.log.Info("numapool shutting down", "mode", "forced")
	p.pool.ShutdownNow()
	p.logStopped()
}

func (p *Pool) logStopped() {
	s := p.pool.Stats()
	p.log.Info("numapool stopped",
		"submitted", s.Submitted,
		"completed", s.Completed,
		"panicked", s.Panicked,
		"stolen", s.Stolen,
		"rejected", s.Rejected,
		"discarded", s.Discarded)
}

// Done is closed once the pool is stopped.
func (p *Pool) Done() <-chan struct{} {
	return p.pool.Done()
}

// State returns the lifecycle state.
func (p *Pool) State() State {
	return p.pool.State()
}

// Stats returns current counters and queue depths.
func (p *Pool) Stats() Stats {
	return p.pool.Stats()
}

// Journal returns recent non-dispatch events, oldest first.
func (p *Pool) Journal() []api.Event {
	return p.journal.Recent()
}

// DumpState returns the output of every registered debug probe.
func (p *Pool) DumpState() map[string]any {
	return p.debug.DumpState()
}

// RegisterProbe adds a named debug probe.
func (p *Pool) RegisterProbe(name string, fn func() any) {
	p.debug.RegisterProbe(name, fn)
}
