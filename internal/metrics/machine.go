package metrics

// DefaultPct is substituted for any utilization that could not be measured.
const DefaultPct = 50.0

// Fallbacks records which fields of a MachineMetrics were defaulted
// rather than measured.
type Fallbacks struct {
	CPU  bool `json:"cpu,omitempty"`
	Mem  bool `json:"mem,omitempty"`
	Disk bool `json:"disk,omitempty"`
}

// Any reports whether at least one field was defaulted.
func (f Fallbacks) Any() bool {
	return f.CPU || f.Mem || f.Disk
}

// All reports whether no field was measured.
func (f Fallbacks) All() bool {
	return f.CPU && f.Mem && f.Disk
}

// MachineMetrics is a point-in-time load snapshot for one host.
// Build it with NewMachineMetrics; LoadScore and Status are derived there
// and the value is not meant to be modified afterwards.
type MachineMetrics struct {
	Host      string    `json:"host"`
	CPUPct    float64   `json:"cpu_pct"`
	MemPct    float64   `json:"mem_pct"`
	DiskPct   float64   `json:"disk_pct"`
	LoadScore float64   `json:"load_score"`
	Status    Status    `json:"status"`
	Fallbacks Fallbacks `json:"fallbacks,omitempty"`
}

// NewMachineMetrics derives the load score and status from the three
// percentages.
func NewMachineMetrics(host string, cpuPct, memPct, diskPct float64, fb Fallbacks) MachineMetrics {
	score := CalculateLoadScore(cpuPct, memPct, diskPct)
	return MachineMetrics{
		Host:      host,
		CPUPct:    cpuPct,
		MemPct:    memPct,
		DiskPct:   diskPct,
		LoadScore: score,
		Status:    ClassifyLoadStatus(score),
		Fallbacks: fb,
	}
}

// Reading is an optional measurement: OK is false when the source output
// was missing or unparseable.
type Reading struct {
	Value float64
	OK    bool
}

// Measured wraps a parsed value.
func Measured(v float64) Reading { return Reading{Value: v, OK: true} }

// withFallback is the single place where unmeasured fields become DefaultPct.
func withFallback(r Reading) (float64, bool) {
	if !r.OK {
		return DefaultPct, true
	}
	return r.Value, false
}

// FromReadings builds a MachineMetrics from optional readings, defaulting
// whatever is missing.
func FromReadings(host string, cpu, mem, disk Reading) MachineMetrics {
	var fb Fallbacks
	cpuPct, cpuFB := withFallback(cpu)
	memPct, memFB := withFallback(mem)
	diskPct, diskFB := withFallback(disk)
	fb.CPU, fb.Mem, fb.Disk = cpuFB, memFB, diskFB
	return NewMachineMetrics(host, cpuPct, memPct, diskPct, fb)
}
