// File: adapters/observer_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Glue that lets plain functions and groups of sinks satisfy api.Observer.
//
// Package adapters provides glue code between the core API contracts
// and their implementations.

package adapters

import "github.com/momentics/numapool/api"

// ObserverFunc adapts a function to api.Observer.
type ObserverFunc func(api.Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e api.Event) { f(e) }

// multiObserver fans one event out to several observers in order.
type multiObserver []api.Observer

func (m multiObserver) Observe(e api.Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Multi combines observers; nil entries are dropped. With no remaining
// observer it returns api.NopObserver, with one it returns that observer.
func Multi(observers ...api.Observer) api.Observer {
	var m multiObserver
	for _, o := range observers {
		switch v := o.(type) {
		case nil:
		case multiObserver:
			m = append(m, v...)
		default:
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return api.NopObserver{}
	case 1:
		return m[0]
	}
	return m
}
