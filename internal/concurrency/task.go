// File: internal/concurrency/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"time"

	"github.com/momentics/numapool/api"
)

// task is a unit of work together with its placement hint. It is moved by
// value between queues and never shared.
type task struct {
	work     api.TaskFunc
	hint     int
	enqueued time.Time
}
