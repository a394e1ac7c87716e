// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, event logging, recent-event journal and debug
// introspection layer for numapool.
//
// Every sink here implements api.Observer and can be combined with
// adapters.Multi. Sinks are called synchronously from worker threads.
package control
