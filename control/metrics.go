// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus instruments fed from scheduler events.

package control

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/numapool/api"
)

const metricsNamespace = "numapool"

// Rejection reasons used as label values.
const (
	ReasonQueueFull = "queue_full"
	ReasonClosed    = "closed"
	ReasonInvalid   = "invalid_argument"
	ReasonOther     = "other"
)

var _ api.Observer = (*Metrics)(nil)

// Metrics is an api.Observer that maintains Prometheus counters.
type Metrics struct {
	dispatched  prometheus.Counter
	latency     prometheus.Histogram
	steals      prometheus.Counter
	panics      prometheus.Counter
	pinFailures prometheus.Counter
	rejections  *prometheus.CounterVec
	discarded   prometheus.Counter
}

// NewMetrics creates the instruments. They count from creation on; call
// Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_dispatched_total",
			Help:      "Tasks that started executing.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Time between submission and first execution of a task.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		steals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steals_total",
			Help:      "Tasks taken from a peer worker's queue.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "task_panics_total",
			Help:      "Tasks whose work panicked.",
		}),
		pinFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pin_failures_total",
			Help:      "Workers that could not bind to their NUMA node.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejections_total",
			Help:      "Refused submissions by reason.",
		}, []string{"reason"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_discarded_total",
			Help:      "Queued tasks dropped at shutdown without running.",
		}),
	}
}

// Collectors returns every instrument.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.dispatched, m.latency, m.steals, m.panics, m.pinFailures, m.rejections, m.discarded,
	}
}

// Register adds every instrument to reg. On failure the instruments already
// added are removed again, leaving reg as it was.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	cs := m.Collectors()
	for i, c := range cs {
		if err := reg.Register(c); err != nil {
			unregister(reg, cs[:i])
			return errors.Wrap(err, "metrics: register")
		}
	}
	return nil
}

// Unregister removes every instrument from reg.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	unregister(reg, m.Collectors())
}

func unregister(reg prometheus.Registerer, cs []prometheus.Collector) {
	for _, c := range cs {
		reg.Unregister(c)
	}
}

// Observe implements api.Observer.
func (m *Metrics) Observe(e api.Event) {
	switch e.Kind {
	case api.EventDispatched:
		m.dispatched.Inc()
		m.latency.Observe(e.Wait.Seconds())
	case api.EventStolen:
		m.steals.Inc()
	case api.EventTaskPanic:
		m.panics.Inc()
	case api.EventPinFailed:
		m.pinFailures.Inc()
	case api.EventRejected:
		m.rejections.WithLabelValues(RejectReason(e.Err)).Inc()
	case api.EventDiscarded:
		m.discarded.Add(float64(e.Count))
	}
}

// RejectReason maps a submission error to its label value.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, api.ErrQueueFull):
		return ReasonQueueFull
	case errors.Is(err, api.ErrPoolClosed):
		return ReasonClosed
	case errors.Is(err, api.ErrInvalidArgument):
		return ReasonInvalid
	}
	return ReasonOther
}
