// control/journal.go
// Author: momentics <momentics@gmail.com>
//
// Bounded history of recent scheduler events for debug dumps.

package control

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/numapool/api"
)

var _ api.Observer = (*Journal)(nil)

// Journal keeps the last limit events of the selected kinds in a ring.
type Journal struct {
	mu      sync.Mutex
	events  *queue.Queue
	limit   int
	kinds   map[api.EventKind]bool
	evicted int64
}

// NewJournal records up to limit events. Without kinds, every kind except
// EventDispatched is kept; per-task dispatch events would flush the history.
func NewJournal(limit int, kinds ...api.EventKind) *Journal {
	if limit <= 0 {
		limit = 1
	}
	j := &Journal{events: queue.New(), limit: limit, kinds: make(map[api.EventKind]bool)}
	if len(kinds) == 0 {
		kinds = []api.EventKind{
			api.EventStolen, api.EventTaskPanic, api.EventPinFailed, api.EventRejected, api.EventDiscarded,
		}
	}
	for _, k := range kinds {
		j.kinds[k] = true
	}
	return j
}

// Observe implements api.Observer.
func (j *Journal) Observe(e api.Event) {
	if !j.kinds[e.Kind] {
		return
	}
	j.mu.Lock()
	j.events.Add(e)
	if j.events.Length() > j.limit {
		j.events.Remove()
		j.evicted++
	}
	j.mu.Unlock()
}

// Recent returns the retained events, oldest first.
func (j *Journal) Recent() []api.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]api.Event, j.events.Length())
	for i := range out {
		out[i] = j.events.Get(i).(api.Event)
	}
	return out
}

// Evicted returns how many events fell out of the ring.
func (j *Journal) Evicted() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.evicted
}
