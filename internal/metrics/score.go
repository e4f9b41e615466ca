package metrics

// Load score weights. CPU contention hurts interactive latency more
// directly than memory or disk pressure, so it carries the most weight.
const (
	CPUWeight  = 0.4
	MemWeight  = 0.3
	DiskWeight = 0.3
)

// Status thresholds on the load score.
const (
	ModerateThreshold = 0.4
	HighThreshold     = 0.7
)

// Status buckets a load score.
type Status string

const (
	StatusLow      Status = "low"
	StatusModerate Status = "moderate"
	StatusHigh     Status = "high"
)

// CalculateLoadScore reduces three utilization percentages in [0,100] to a
// score in [0,1]. Lower is better.
func CalculateLoadScore(cpuPct, memPct, diskPct float64) float64 {
	return (cpuPct*CPUWeight + memPct*MemWeight + diskPct*DiskWeight) / 100
}

// ClassifyLoadStatus returns low below 0.4, moderate below 0.7, high otherwise.
func ClassifyLoadStatus(score float64) Status {
	switch {
	case score < ModerateThreshold:
		return StatusLow
	case score < HighThreshold:
		return StatusModerate
	default:
		return StatusHigh
	}
}
