package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// localSampleWindow is how long CPU utilization is averaged over.
const localSampleWindow = 500 * time.Millisecond

// SampleLocal measures this machine directly instead of over ssh. Fields
// that cannot be read degrade to DefaultPct, as with remote probes.
func SampleLocal(ctx context.Context) MachineMetrics {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	var cpuR, memR, diskR Reading
	if pcts, err := cpu.PercentWithContext(ctx, localSampleWindow, false); err == nil && len(pcts) > 0 {
		cpuR = Measured(clampPct(pcts[0]))
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memR = Measured(clampPct(vm.UsedPercent))
	}
	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		diskR = Measured(clampPct(du.UsedPercent))
	}
	return FromReadings(host, cpuR, memR, diskR)
}
