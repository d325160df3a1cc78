// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Process-level debug probes.

package control

import (
	"runtime"

	"github.com/momentics/hioload-bench/affinity"
)

// RegisterPlatformProbes adds CPU and scheduler probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
	dp.RegisterProbe("platform.goroutines", func() any {
		return runtime.NumGoroutine()
	})
	// Affinity of whichever thread serves the probe, not of the event loop.
	dp.RegisterProbe("platform.affinity", func() any {
		cpus, err := affinity.CurrentCPUs()
		if err != nil {
			return err.Error()
		}
		return cpus
	})
}
