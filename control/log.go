// control/log.go
// Author: momentics <momentics@gmail.com>
//
// Structured log sink for scheduler events.

package control

import (
	"context"
	"log/slog"

	"github.com/momentics/numapool/api"
)

var _ api.Observer = (*LogObserver)(nil)

// LogObserver writes events to a slog.Logger. Per-task events go to Debug.
type LogObserver struct {
	log *slog.Logger
}

func NewLogObserver(log *slog.Logger) *LogObserver {
	return &LogObserver{log: log}
}

// Observe implements api.Observer.
func (o *LogObserver) Observe(e api.Event) {
	switch e.Kind {
	case api.EventDispatched:
		if o.log.Enabled(context.Background(), slog.LevelDebug) {
			o.log.Debug("task dispatched", "worker", e.Worker, "domain", e.Domain, "wait", e.Wait)
		}
	case api.EventStolen:
		o.log.Debug("task stolen", "worker", e.Worker, "from", e.Peer)
	case api.EventTaskPanic:
		o.log.Error("task failed", "worker", e.Worker, "err", e.Err)
	case api.EventPinFailed:
		o.log.Warn("failed to pin worker to NUMA node", "worker", e.Worker, "domain", e.Domain, "err", e.Err)
	case api.EventRejected:
		o.log.Debug("task rejected", "reason", RejectReason(e.Err), "err", e.Err)
	case api.EventDiscarded:
		o.log.Info("discarded queued tasks", "count", e.Count)
	}
}
