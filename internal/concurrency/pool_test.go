package concurrency

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/numapool/api"
	"github.com/momentics/numapool/fake"
)

const waitFor = 5 * time.Second

func testConfig(workers, capacity int) Config {
	return Config{
		Workers:         workers,
		QueueCapacity:   capacity,
		IdleSleep:       10 * time.Microsecond,
		DrainOnShutdown: true,
	}
}

func newTestPool(t *testing.T, cfg Config, loc api.Locality, obs api.Observer) *Pool {
	t.Helper()
	p, err := New(cfg, loc, obs)
	require.NoError(t, err)
	t.Cleanup(p.ShutdownNow)
	return p
}

// blockWorker submits a task that parks its worker until the returned
// release func is called, and returns the index of the parked worker.
// Nothing else may be dispatching while it runs.
func blockWorker(t *testing.T, p *Pool, rec *fake.Recorder, hint int) (int, func()) {
	t.Helper()
	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.EnqueueOn(hint, func() {
		close(started)
		<-gate
	}))
	<-started
	worker := -1
	for _, e := range rec.Events() {
		if e.Kind == api.EventDispatched {
			worker = e.Worker
		}
	}
	require.GreaterOrEqual(t, worker, 0)
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return worker, release
}

func TestNew_Validation(t *testing.T) {
	loc := fake.NewLocality(1)

	_, err := New(testConfig(0, 10), loc, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = New(testConfig(2, 0), loc, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = New(testConfig(2, 10), nil, nil)
	assert.ErrorIs(t, err, api.ErrLocalityUnavailable)

	down := &fake.Locality{Domains: 2, Unavailable: true}
	_, err = New(testConfig(2, 10), down, nil)
	assert.ErrorIs(t, err, api.ErrLocalityUnavailable)

	_, err = New(testConfig(2, 10), fake.NewLocality(0), nil)
	assert.ErrorIs(t, err, api.ErrLocalityUnavailable)

	assert.Empty(t, loc.Binds(), "no worker may start on failed construction")
	assert.Empty(t, down.Binds())
}

func TestPool_StartAndShutdownEmpty(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 9} {
		for _, capacity := range []int{1, 16} {
			p, err := New(testConfig(workers, capacity), fake.NewLocality(2), nil)
			require.NoError(t, err)
			assert.Equal(t, StateRunning, p.State())

			p.Shutdown()
			assert.Equal(t, StateStopped, p.State())
			select {
			case <-p.Done():
			default:
				t.Fatalf("Done not closed for %d workers", workers)
			}
		}
	}
}

func TestPool_CounterScenario(t *testing.T) {
	p := newTestPool(t, testConfig(4, 1000), fake.NewLocality(1), nil)

	var counter atomic.Int64
	for i := 0; i < 400; i++ {
		require.NoError(t, p.Enqueue(func() { counter.Add(1) }))
	}
	p.Shutdown()

	assert.Equal(t, int64(400), counter.Load())
	s := p.Stats()
	assert.Equal(t, StateStopped, s.State)
	assert.Equal(t, int64(400), s.Submitted)
	assert.Equal(t, int64(400), s.Completed)
	assert.Zero(t, s.Queued())
	assert.Zero(t, s.Discarded)
}

func TestPool_QueueFull(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(1, 2), fake.NewLocality(1), rec)
	_, release := blockWorker(t, p, rec, api.NoHint)

	noop := func() {}
	require.NoError(t, p.Enqueue(noop))
	require.NoError(t, p.Enqueue(noop))
	err := p.Enqueue(noop)
	assert.ErrorIs(t, err, api.ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().Rejected)
	assert.Equal(t, 1, rec.Count(api.EventRejected))

	release()
	p.Shutdown()
	assert.Equal(t, int64(3), p.Stats().Completed)
}

func TestPool_QueueFullOnSaturatedDomain(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(2, 4), fake.NewLocality(2), rec)
	blocked, release := blockWorker(t, p, rec, 0)
	other, releaseOther := blockWorker(t, p, rec, 1)
	require.NotEqual(t, blocked, other)
	defer release()
	defer releaseOther()

	var full bool
	for i := 0; i < 5; i++ {
		if err := p.EnqueueOn(0, func() {}); err != nil {
			assert.ErrorIs(t, err, api.ErrQueueFull)
			full = true
			break
		}
	}
	assert.True(t, full, "saturating one domain must hit QueueFull")
}

func TestPool_NilWorkAlwaysInvalid(t *testing.T) {
	p := newTestPool(t, testConfig(1, 4), fake.NewLocality(1), nil)
	assert.ErrorIs(t, p.Enqueue(nil), api.ErrInvalidArgument)
	assert.ErrorIs(t, p.EnqueueOn(0, nil), api.ErrInvalidArgument)

	p.Shutdown()
	assert.ErrorIs(t, p.Enqueue(nil), api.ErrInvalidArgument)
}

func TestPool_ClosedAfterShutdown(t *testing.T) {
	p := newTestPool(t, testConfig(2, 4), fake.NewLocality(1), nil)
	p.Shutdown()
	assert.ErrorIs(t, p.Enqueue(func() {}), api.ErrPoolClosed)
	assert.ErrorIs(t, p.EnqueueOn(0, func() {}), api.ErrPoolClosed)

	q := newTestPool(t, testConfig(2, 4), fake.NewLocality(1), nil)
	q.ShutdownNow()
	assert.ErrorIs(t, q.Enqueue(func() {}), api.ErrPoolClosed)
}

func TestPool_ShutdownIdempotent(t *testing.T) {
	p := newTestPool(t, testConfig(3, 4), fake.NewLocality(1), nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Shutdown()
		}()
	}
	wg.Wait()
	p.ShutdownNow()
	p.Shutdown()
	assert.Equal(t, StateStopped, p.State())
}

func TestPool_PanicIsolation(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(1, 8), fake.NewLocality(1), rec)

	require.NoError(t, p.Enqueue(func() { panic("kaboom") }))
	var ran atomic.Bool
	require.NoError(t, p.Enqueue(func() { ran.Store(true) }))
	p.Shutdown()

	assert.True(t, ran.Load())
	s := p.Stats()
	assert.Equal(t, int64(1), s.Panicked)
	assert.Equal(t, int64(2), s.Completed)
	require.Equal(t, 1, rec.Count(api.EventTaskPanic))
	for _, e := range rec.Events() {
		if e.Kind == api.EventTaskPanic {
			assert.ErrorContains(t, e.Err, "kaboom")
		}
	}
}

func TestPool_GoexitKeepsWorker(t *testing.T) {
	rec := &fake.Recorder{}
	loc := fake.NewLocality(1)
	p := newTestPool(t, testConfig(1, 8), loc, rec)

	exited := make(chan struct{})
	require.NoError(t, p.Enqueue(func() {
		close(exited)
		runtime.Goexit()
	}))
	<-exited
	var ran atomic.Bool
	require.NoError(t, p.Enqueue(func() { ran.Store(true) }))
	p.Shutdown()

	assert.True(t, ran.Load())
	s := p.Stats()
	assert.Equal(t, int64(1), s.Panicked)
	assert.Equal(t, int64(2), s.Completed)
	assert.Equal(t, int64(0), s.Discarded)
	require.Equal(t, 1, rec.Count(api.EventTaskPanic))
	for _, e := range rec.Events() {
		if e.Kind == api.EventTaskPanic {
			assert.ErrorContains(t, e.Err, "runtime.Goexit")
		}
	}
	// The replacement goroutine binds its thread again.
	assert.Equal(t, []int{0, 0}, loc.Binds())
}

func TestPool_ShutdownNowDiscardsQueued(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(1, 100), fake.NewLocality(1), rec)
	_, release := blockWorker(t, p, rec, api.NoHint)

	var counter atomic.Int64
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Enqueue(func() { counter.Add(1) }))
	}

	done := make(chan struct{})
	go func() {
		p.ShutdownNow()
		close(done)
	}()
	require.Eventually(t, func() bool { return p.Stats().Discarded == 10 }, waitFor, time.Millisecond)
	assert.ErrorIs(t, p.Enqueue(func() {}), api.ErrPoolClosed)

	release()
	<-done
	assert.Zero(t, counter.Load())
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, 1, rec.Count(api.EventDiscarded))
}

func TestPool_GracefulShutdownDrains(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(1, 16), fake.NewLocality(1), rec)
	_, release := blockWorker(t, p, rec, api.NoHint)

	var counter atomic.Int64
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Enqueue(func() { counter.Add(1) }))
	}
	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()
	require.Eventually(t, func() bool { return p.State() == StateDraining }, waitFor, time.Millisecond)
	assert.ErrorIs(t, p.Enqueue(func() {}), api.ErrPoolClosed)

	release()
	<-done
	assert.Equal(t, int64(3), counter.Load())
	assert.Zero(t, p.Stats().Discarded)
}

func TestPool_NonDrainingShutdownDropsQueued(t *testing.T) {
	rec := &fake.Recorder{}
	cfg := testConfig(1, 16)
	cfg.DrainOnShutdown = false
	p := newTestPool(t, cfg, fake.NewLocality(1), rec)
	_, release := blockWorker(t, p, rec, api.NoHint)

	var counter atomic.Int64
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Enqueue(func() { counter.Add(1) }))
	}
	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()
	require.Eventually(t, func() bool { return p.State() == StateDraining }, waitFor, time.Millisecond)

	release()
	<-done
	assert.Zero(t, counter.Load())
	assert.Equal(t, int64(3), p.Stats().Discarded)
}

func TestPool_ShutdownNowDuringDrain(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(1, 16), fake.NewLocality(1), rec)
	_, release := blockWorker(t, p, rec, api.NoHint)

	var counter atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Enqueue(func() { counter.Add(1) }))
	}
	graceful := make(chan struct{})
	go func() {
		p.Shutdown()
		close(graceful)
	}()
	require.Eventually(t, func() bool { return p.State() == StateDraining }, waitFor, time.Millisecond)

	forced := make(chan struct{})
	go func() {
		p.ShutdownNow()
		close(forced)
	}()
	require.Eventually(t, func() bool { return p.Stats().Discarded == 5 }, waitFor, time.Millisecond)

	release()
	<-graceful
	<-forced
	assert.Zero(t, counter.Load())
}

func TestPool_DomainAssignmentRoundRobin(t *testing.T) {
	loc := fake.NewLocality(3)
	p := newTestPool(t, testConfig(7, 4), loc, nil)

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, p.Stats().Domains)
	assert.Equal(t, 3, p.DomainCount())

	require.Eventually(t, func() bool { return len(loc.Binds()) == 7 }, waitFor, time.Millisecond)
	binds := loc.Binds()
	sort.Ints(binds)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 2, 2}, binds)
}

func TestPool_RouteHint(t *testing.T) {
	p := newTestPool(t, testConfig(4, 4), fake.NewLocality(2), nil)
	domains := p.Stats().Domains

	for i := 0; i < 50; i++ {
		assert.Equal(t, 0, p.route(0), "first worker of domain 0")
		assert.Equal(t, 1, p.route(1), "first worker of domain 1")
	}
	for _, hint := range []int{0, 1} {
		assert.Equal(t, hint, domains[p.route(hint)])
	}

	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		seen[p.route(api.NoHint)] = true
		seen[p.route(7)] = true
	}
	assert.Len(t, seen, 4, "unaffiliated tasks spread over all workers")
}

func TestPool_RouteHintWithoutWorker(t *testing.T) {
	// 4 domains, 2 workers: domains 2 and 3 have nobody.
	p := newTestPool(t, testConfig(2, 4), fake.NewLocality(4), nil)
	assert.Equal(t, 1, p.route(1))
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		seen[p.route(3)] = true
	}
	assert.Len(t, seen, 2)
}

func TestPool_PinFailureIsNonFatal(t *testing.T) {
	rec := &fake.Recorder{}
	loc := &fake.Locality{Domains: 1, FailBind: map[int]bool{0: true}}
	p := newTestPool(t, testConfig(1, 4), loc, rec)

	var ran atomic.Bool
	require.NoError(t, p.Enqueue(func() { ran.Store(true) }))
	p.Shutdown()

	assert.True(t, ran.Load())
	assert.Equal(t, 1, rec.Count(api.EventPinFailed))
}

func TestPool_IdleWorkerSteals(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(2, 16), fake.NewLocality(2), rec)
	blocked, release := blockWorker(t, p, rec, 0)
	domain := p.Stats().Domains[blocked]
	before := len(rec.Events())
	stolenBefore := p.Stats().Stolen

	var counter atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, p.EnqueueOn(domain, func() { counter.Add(1) }))
	}
	require.Eventually(t, func() bool { return counter.Load() == 5 }, waitFor, time.Millisecond)

	stolen := 0
	for _, e := range rec.Events()[before:] {
		if e.Kind == api.EventStolen {
			assert.Equal(t, blocked, e.Peer)
			assert.NotEqual(t, blocked, e.Worker)
			stolen++
		}
	}
	assert.Equal(t, 5, stolen)
	assert.Equal(t, stolenBefore+5, p.Stats().Stolen)

	release()
	p.Shutdown()
}

func TestPool_ConcurrentProducers(t *testing.T) {
	p := newTestPool(t, testConfig(4, 10000), fake.NewLocality(2), nil)

	var counter atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				var err error
				if i%2 == 0 {
					err = p.EnqueueOn(g%2, func() { counter.Add(1) })
				} else {
					err = p.Enqueue(func() { counter.Add(1) })
				}
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()
	p.Shutdown()
	assert.Equal(t, int64(4000), counter.Load())
}

func TestPool_ProducersRacingShutdown(t *testing.T) {
	for round := 0; round < 20; round++ {
		p := newTestPool(t, testConfig(4, 10000), fake.NewLocality(2), nil)

		var accepted, ran atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 200; i++ {
					err := p.EnqueueOn(i%3-1, func() { ran.Add(1) })
					if err == nil {
						accepted.Add(1)
						continue
					}
					assert.ErrorIs(t, err, api.ErrPoolClosed)
				}
			}()
		}
		close(start)
		p.Shutdown()
		wg.Wait()

		s := p.Stats()
		assert.Equal(t, accepted.Load(), ran.Load(), "round %d", round)
		assert.Equal(t, accepted.Load(), s.Submitted, "round %d", round)
		assert.Equal(t, int64(0), s.Discarded, "round %d", round)
	}
}

func TestPool_DispatchEvents(t *testing.T) {
	rec := &fake.Recorder{}
	p := newTestPool(t, testConfig(2, 16), fake.NewLocality(1), rec)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Enqueue(func() { time.Sleep(time.Microsecond) }))
	}
	p.Shutdown()

	assert.Equal(t, 10, rec.Count(api.EventDispatched))
	for _, e := range rec.Events() {
		if e.Kind == api.EventDispatched {
			assert.GreaterOrEqual(t, e.Wait, time.Duration(0))
			assert.False(t, e.Time.IsZero())
		}
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
