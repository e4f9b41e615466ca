package balancer

import (
	"context"
	"fmt"

	"github.com/jorge-barreto/fleet/internal/metrics"
)

// Capacity summarizes the averaged load of a group.
type Capacity struct {
	Group       string                   `json:"group"`
	Hosts       []metrics.MachineMetrics `json:"hosts"`
	AvgCPU      float64                  `json:"avg_cpu"`
	AvgMem      float64                  `json:"avg_mem"`
	AvgDisk     float64                  `json:"avg_disk"`
	AvgScore    float64                  `json:"avg_load_score"`
	Status      metrics.Status           `json:"status"`
	Description string                   `json:"description"`
	Excluded    []Exclusion              `json:"excluded,omitempty"`
}

// Total is the number of configured members probed.
func (c Capacity) Total() int { return len(c.Hosts) + len(c.Excluded) }

// GroupCapacity probes every member of group and averages their metrics.
func (b *Balancer) GroupCapacity(ctx context.Context, group string) (Capacity, error) {
	members, err := b.groupMembers(group)
	if err != nil {
		return Capacity{}, err
	}
	if len(members) == 0 {
		return Capacity{}, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}

	measured, excluded := b.Probe(ctx, members)
	c := Capacity{Group: group, Hosts: measured, Excluded: excluded}
	if len(measured) == 0 {
		return c, fmt.Errorf("group %s: %w", group, ErrNoMetrics)
	}

	n := float64(len(measured))
	for _, m := range measured {
		c.AvgCPU += m.CPUPct
		c.AvgMem += m.MemPct
		c.AvgDisk += m.DiskPct
		c.AvgScore += m.LoadScore
	}
	c.AvgCPU /= n
	c.AvgMem /= n
	c.AvgDisk /= n
	c.AvgScore /= n
	c.Status = metrics.ClassifyLoadStatus(c.AvgScore)
	c.Description = describeCapacity(c.Status)
	return c, nil
}

func describeCapacity(s metrics.Status) string {
	switch s {
	case metrics.StatusLow:
		return "High capacity available"
	case metrics.StatusModerate:
		return "Moderate capacity"
	default:
		return "Limited capacity"
	}
}
