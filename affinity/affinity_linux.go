//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for NUMA discovery and thread CPU affinity.

package affinity

import (
	"github.com/lrita/numa"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// setAffinityPlatform sets the calling thread's affinity with sched_setaffinity(2).
func setAffinityPlatform(cpus []int) error {
	var set unix.CPUSet
	for _, c := range cpus {
		set.Set(c)
	}
	// pid 0 addresses the calling thread
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrap(err, "affinity: sched_setaffinity")
	}
	return nil
}

// systemNuma delegates to github.com/lrita/numa.
type systemNuma struct{}

func systemLibrary() numaLibrary { return systemNuma{} }

func (systemNuma) Available() bool { return numa.Available() }

func (systemNuma) Nodes() []int { return nodeIDs(numa.NodeMask()) }

// RunOnNode binds the calling thread; numa.RunOnNode applies the node's CPU
// mask with sched_setaffinity on pid 0.
func (systemNuma) RunOnNode(node int) error { return numa.RunOnNode(node) }

// nodeIDs lists the set bits of mask in ascending order.
func nodeIDs(mask numa.Bitmask) []int {
	var ids []int
	for i := 0; i < mask.Len(); i++ {
		if mask.Get(i) {
			ids = append(ids, i)
		}
	}
	return ids
}
