// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU/NUMA affinity. Platform-specific implementations are
// located in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/momentics/numapool/api"
)

// SetAffinity restricts the calling OS thread to the given logical CPUs on
// supported platforms. The caller must hold runtime.LockOSThread.
// On unsupported platforms returns an error wrapping api.ErrNotSupported.
func SetAffinity(cpus []int) error {
	if len(cpus) == 0 {
		return errors.Wrap(api.ErrInvalidArgument, "affinity: empty CPU set")
	}
	return setAffinityPlatform(cpus)
}

// numaLibrary is the subset of the NUMA library the provider needs.
type numaLibrary interface {
	Available() bool
	// Nodes returns the online node IDs in ascending order.
	Nodes() []int
	// RunOnNode restricts the calling thread to the CPUs of node.
	RunOnNode(node int) error
}

var _ api.Locality = (*Provider)(nil)

// Provider implements api.Locality over the host NUMA nodes. Domain d is the
// d-th online node in ascending node ID order, so sparse node numbering
// still yields dense domain indexes.
type Provider struct {
	lib   numaLibrary
	nodes []int
	err   error
}

// NewSystem detects the host NUMA nodes. Detection failure is not returned
// here; it makes IsAvailable report false and is exposed through Err.
func NewSystem() *Provider {
	return newProvider(systemLibrary())
}

// NewSingle returns a provider with one domain that never restricts CPUs.
func NewSingle() *Provider {
	return newProvider(singleNode{})
}

func newProvider(lib numaLibrary) *Provider {
	p := &Provider{lib: lib}
	if !lib.Available() {
		p.err = errors.Wrap(api.ErrLocalityUnavailable, "affinity: NUMA not available on this system")
		return p
	}
	p.nodes = lib.Nodes()
	if len(p.nodes) == 0 {
		p.err = errors.Wrap(api.ErrLocalityUnavailable, "affinity: no online NUMA node")
	}
	return p
}

// IsAvailable reports whether at least one NUMA node was detected.
func (p *Provider) IsAvailable() bool {
	return p.err == nil && len(p.nodes) > 0
}

// DomainCount returns the number of nodes, 0 when unavailable.
func (p *Provider) DomainCount() int {
	if !p.IsAvailable() {
		return 0
	}
	return len(p.nodes)
}

// BindCurrentThread runs the calling OS thread on the node behind domain.
// The caller must hold runtime.LockOSThread.
func (p *Provider) BindCurrentThread(domain int) error {
	if !p.IsAvailable() {
		return errors.WithStack(api.ErrLocalityUnavailable)
	}
	if domain < 0 || domain >= len(p.nodes) {
		return errors.Wrapf(api.ErrInvalidArgument, "affinity: domain %d out of range [0,%d)", domain, len(p.nodes))
	}
	node := p.nodes[domain]
	if err := p.lib.RunOnNode(node); err != nil {
		return errors.Wrapf(err, "affinity: bind to node %d", node)
	}
	return nil
}

// Nodes returns the node ID of every domain, by domain index.
func (p *Provider) Nodes() []int {
	return append([]int(nil), p.nodes...)
}

// Err returns the detection error, if any.
func (p *Provider) Err() error {
	return p.err
}

// String returns a human-readable representation.
func (p *Provider) String() string {
	if !p.IsAvailable() {
		return "NUMA unavailable"
	}
	ids := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		ids[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("%d NUMA node(s): %s", len(p.nodes), strings.Join(ids, ","))
}

// singleNode reports one node and leaves thread affinity untouched.
type singleNode struct{}

func (singleNode) Available() bool     { return true }
func (singleNode) Nodes() []int        { return []int{0} }
func (singleNode) RunOnNode(int) error { return nil }
