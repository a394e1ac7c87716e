// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Host and topology debug probes.

package control

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/momentics/numapool/api"
)

// RegisterPlatformProbes sets host CPU and locality probes.
func RegisterPlatformProbes(dp *DebugProbes, loc api.Locality) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
	dp.RegisterProbe("platform.physical_cores", func() any {
		n, err := cpu.Counts(false)
		if err != nil {
			return err.Error()
		}
		return n
	})
	if loc != nil {
		dp.RegisterProbe("platform.numa_domains", func() any {
			return loc.DomainCount()
		})
	}
}
