package metrics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jorge-barreto/fleet/internal/dispatch"
)

// Probe commands. The memory probe falls back to vm_stat on macOS.
const (
	CPUCommand    = "uptime"
	MemoryCommand = "free -m 2>/dev/null || vm_stat"
	DiskCommand   = "df -h / | tail -1"
)

// DefaultCores is the assumed core count used to turn a load average into a
// utilization percentage. It is an approximation, not a measurement.
const DefaultCores = 4.0

// Collector gathers MachineMetrics for remote hosts through an Executor.
// Each command is bounded by the Executor's own timeout.
type Collector struct {
	Executor dispatch.Executor
	Cores    float64
	Logger   *zap.Logger
	Recorder *Recorder
}

// NewCollector returns a Collector with default core count.
func NewCollector(exec dispatch.Executor, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{Executor: exec, Cores: DefaultCores, Logger: logger}
}

// GetMachineLoad probes host. Unparseable or failed command output degrades
// that one field to DefaultPct; an error is returned only when the executor
// itself fails.
func (c *Collector) GetMachineLoad(ctx context.Context, host string) (*MachineMetrics, error) {
	start := time.Now()
	log := c.logger().With(zap.String("host", host))

	cpuOut, err := c.run(ctx, host, CPUCommand)
	if err != nil {
		return nil, c.fail(log, host, start, err)
	}
	memOut, err := c.run(ctx, host, MemoryCommand)
	if err != nil {
		return nil, c.fail(log, host, start, err)
	}
	diskOut, err := c.run(ctx, host, DiskCommand)
	if err != nil {
		return nil, c.fail(log, host, start, err)
	}

	cpu := Reading{}
	if cpuOut.ok {
		if la, ok := ParseCPULoad(cpuOut.text); ok {
			cpu = Measured(c.cpuPct(la.Load1))
		}
	}
	mem := Reading{}
	if memOut.ok {
		if mu, ok := ParseMemoryUsage(memOut.text); ok {
			mem = Measured(mu.UsePct)
		}
	}
	disk := Reading{}
	if diskOut.ok {
		if du, ok := ParseDiskUsage(diskOut.text); ok {
			disk = Measured(float64(du.UsePct))
		}
	}

	m := FromReadings(host, cpu, mem, disk)
	if m.Fallbacks.Any() {
		log.Debug("defaulted unmeasured fields",
			zap.Bool("cpu", m.Fallbacks.CPU),
			zap.Bool("mem", m.Fallbacks.Mem),
			zap.Bool("disk", m.Fallbacks.Disk))
	}
	log.Debug("probed host",
		zap.Float64("load_score", m.LoadScore),
		zap.String("status", string(m.Status)),
		zap.Duration("took", time.Since(start)))
	c.Recorder.observe(m, time.Since(start))
	return &m, nil
}

type output struct {
	text string
	ok   bool
}

func (c *Collector) run(ctx context.Context, host, command string) (output, error) {
	res, err := c.Executor.Run(ctx, host, command)
	if err != nil {
		return output{}, err
	}
	if !res.Success {
		c.logger().Debug("probe command failed",
			zap.String("host", host),
			zap.String("command", command),
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", res.Stderr))
		return output{}, nil
	}
	return output{text: res.Stdout, ok: true}, nil
}

func (c *Collector) fail(log *zap.Logger, host string, start time.Time, err error) error {
	log.Warn("probe failed", zap.Error(err))
	c.Recorder.observeFailure(time.Since(start))
	return fmt.Errorf("probing %s: %w", host, err)
}

// cpuPct converts a 1-minute load average into a percentage of the assumed
// core count, clamped to [0,100].
func (c *Collector) cpuPct(load1 float64) float64 {
	cores := c.Cores
	if cores <= 0 {
		cores = DefaultCores
	}
	return clampPct(load1 / cores * 100)
}

func (c *Collector) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func clampPct(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
