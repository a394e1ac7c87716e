// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/numapool/api"
)

var _ api.Locality = (*Locality)(nil)

// Locality is an in-memory api.Locality for tests. It never touches the OS
// scheduler; BindCurrentThread only records the request.
type Locality struct {
	Domains     int          // reported domain count
	Unavailable bool         // makes IsAvailable report false
	FailBind    map[int]bool // domains whose bind fails

	mu    sync.Mutex
	binds []int
}

// NewLocality returns an available fake with the given number of domains.
func NewLocality(domains int) *Locality {
	return &Locality{Domains: domains}
}

func (l *Locality) IsAvailable() bool { return !l.Unavailable }
func (l *Locality) DomainCount() int  { return l.Domains }

// BindCurrentThread records domain and fails for domains listed in FailBind.
func (l *Locality) BindCurrentThread(domain int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.binds = append(l.binds, domain)
	if l.FailBind[domain] {
		return fmt.Errorf("fake: bind to domain %d refused", domain)
	}
	return nil
}

// Binds returns the domains requested so far, in call order.
func (l *Locality) Binds() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.binds...)
}
