// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NUMA-aware work-stealing scheduler core for numapool. A fixed set of
// workers, each locked to one OS thread and bound to one locality domain,
// consume tasks from their own bounded queue and steal from random peers
// when idle.
//
// Locking discipline: every queue has its own mutex and no goroutine ever
// holds two of them. Pool state and queue capacity are read atomically.
package concurrency
