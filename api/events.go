// File: api/events.go
// Package api defines diagnostic event types emitted by the scheduler.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// EventKind classifies a diagnostic event.
type EventKind int

const (
	// EventDispatched fires when a task starts executing; Wait holds its queueing delay.
	EventDispatched EventKind = iota
	// EventStolen fires when Worker took a task from Peer's queue.
	EventStolen
	// EventTaskPanic fires when task work panicked; Err carries the recovered value.
	EventTaskPanic
	// EventPinFailed fires when a worker could not bind to Domain.
	EventPinFailed
	// EventRejected fires when a submission was refused; Err carries the reason.
	EventRejected
	// EventDiscarded fires when forced shutdown dropped Count queued tasks.
	EventDiscarded
)

var eventKindNames = [...]string{
	EventDispatched: "dispatched",
	EventStolen:     "stolen",
	EventTaskPanic:  "task_panic",
	EventPinFailed:  "pin_failed",
	EventRejected:   "rejected",
	EventDiscarded:  "discarded",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// Event is an observational record. Fields not relevant to Kind are zero,
// except Peer and Worker which are -1 when unset.
type Event struct {
	Kind   EventKind
	Time   time.Time
	Worker int
	Peer   int
	Domain int
	Wait   time.Duration
	Count  int
	Err    error
}

// Observer receives diagnostic events. Observe is called from worker threads
// and submitting goroutines concurrently and must not block for long.
type Observer interface {
	Observe(Event)
}

// NopObserver discards all events.
type NopObserver struct{}

// Observe implements Observer.
func (NopObserver) Observe(Event) {}
