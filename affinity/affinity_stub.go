//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.
// Returns errors to indicate unavailability.

package affinity

import (
	"github.com/pkg/errors"

	"github.com/momentics/numapool/api"
)

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform([]int) error {
	return errors.Wrap(api.ErrNotSupported, "affinity: not supported on this platform")
}

// noNuma reports no NUMA support.
type noNuma struct{}

func systemLibrary() numaLibrary { return noNuma{} }

func (noNuma) Available() bool { return false }
func (noNuma) Nodes() []int    { return nil }

func (noNuma) RunOnNode(int) error {
	return errors.Wrap(api.ErrNotSupported, "affinity: no NUMA support on this platform")
}
