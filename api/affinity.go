// File: api/affinity.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Locality (NUMA) contract consumed by the scheduler.

package api

// NoHint marks a task without a locality preference.
const NoHint = -1

// Locality reports hardware locality domains and binds threads to them.
// Implementations must be safe for concurrent use: every worker calls
// BindCurrentThread from its own OS thread at startup.
type Locality interface {
	// IsAvailable reports whether locality services can be used at all.
	IsAvailable() bool
	// DomainCount returns the number of locality domains (NUMA nodes).
	DomainCount() int
	// BindCurrentThread restricts the calling OS thread to the given domain.
	// The caller is expected to hold runtime.LockOSThread.
	BindCurrentThread(domain int) error
}
