// File: facade/options.go
// Package facade defines functional options for the Pool facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/numapool/api"
)

// Option customizes pool initialization.
type Option func(*options)

type options struct {
	locality   api.Locality
	logger     *slog.Logger
	registerer prometheus.Registerer
	observers  []api.Observer
}

// WithLocality replaces the host NUMA provider, e.g. with fake.Locality
// in tests or affinity.NewSingle on machines without NUMA.
func WithLocality(loc api.Locality) Option {
	return func(o *options) {
		o.locality = loc
	}
}

// WithLogger sets the logger for lifecycle messages and events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer sets where metrics are registered when enabled.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithObserver attaches additional event observers, called in order.
func WithObserver(obs ...api.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs...)
	}
}
