// File: cmd/numabench/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/momentics/numapool/affinity"
	"github.com/momentics/numapool/api"
	"github.com/momentics/numapool/facade"
	"github.com/momentics/numapool/internal/logging"
	"github.com/momentics/numapool/internal/workload"
)

// fullBackoff is the pause before resubmitting a task refused with ErrQueueFull.
const fullBackoff = 50 * time.Microsecond

// result summarizes one benchmark run.
type result struct {
	Completed int64
	Rejected  int64
	Elapsed   time.Duration
	Stats     facade.Stats
}

func run(ctx context.Context, c benchConfig, out io.Writer) error {
	logger, closer, err := logging.New(logging.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 3,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	res, err := bench(ctx, c, logger)
	if err != nil {
		logger.Error("benchmark failed", "err", err)
		return err
	}
	report(out, res)
	return nil
}

func newLocality(name string) api.Locality {
	if name == "single" {
		return affinity.NewSingle()
	}
	return affinity.NewSystem()
}

func bench(ctx context.Context, c benchConfig, logger *slog.Logger) (result, error) {
	reg := prometheus.NewRegistry()
	cfg := facade.DefaultConfig()
	cfg.Workers = c.Workers
	cfg.QueueCapacity = c.QueueCapacity
	cfg.IdleSleep = c.IdleSleep

	pool, err := facade.New(cfg,
		facade.WithLocality(newLocality(c.Locality)),
		facade.WithLogger(logger),
		facade.WithRegisterer(reg),
	)
	if err != nil {
		return result{}, err
	}
	// Stops the pool on early return; a second shutdown is a no-op.
	defer pool.ShutdownNow()

	if c.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(c.MetricsAddr, reg, logger)
		if err != nil {
			return result{}, err
		}
		defer stopMetrics()
	}

	var limiter *rate.Limiter
	if c.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.SubmitRate), 1)
	}

	var completed, rejected atomic.Int64
	work := func() {
		workload.Matmul(c.MatrixSize)
		completed.Add(1)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Producers; i++ {
		n := c.Tasks / c.Producers
		if i < c.Tasks%c.Producers {
			n++
		}
		g.Go(func() error {
			for j := 0; j < n; j++ {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				if err := submit(gctx, pool, c, work); err != nil {
					if !errors.Is(err, api.ErrQueueFull) {
						return err
					}
					rejected.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result{}, errors.Wrap(err, "submit tasks")
	}

	if c.Shutdown == "now" {
		pool.ShutdownNow()
	} else {
		pool.Shutdown()
	}
	return result{
		Completed: completed.Load(),
		Rejected:  rejected.Load(),
		Elapsed:   time.Since(start),
		Stats:     pool.Stats(),
	}, nil
}

// submit enqueues work with the configured hint, retrying on a full queue
// when enabled.
func submit(ctx context.Context, pool *facade.Pool, c benchConfig, work api.TaskFunc) error {
	for {
		err := pool.EnqueueOn(c.Hint, work)
		if err == nil || !c.RetryFull || !errors.Is(err, api.ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(fullBackoff):
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func report(out io.Writer, r result) {
	fmt.Fprintf(out, "Completed %d tasks in %.6f seconds\n", r.Completed, r.Elapsed.Seconds())
	fmt.Fprintf(out, "workers=%d submitted=%d stolen=%d panicked=%d rejected=%d queue_full=%d discarded=%d\n",
		r.Stats.Workers, r.Stats.Submitted, r.Stats.Stolen, r.Stats.Panicked,
		r.Stats.Rejected, r.Rejected, r.Stats.Discarded)
}
