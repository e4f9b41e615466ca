package balancer

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/jorge-barreto/fleet/internal/config"
)

// Distribution maps hosts to the tasks assigned to them.
type Distribution struct {
	// Hosts lists the measured hosts in caller order.
	Hosts       []string                 `json:"hosts"`
	Assignments map[string][]config.Task `json:"assignments"`
	// Load is each host's simulated score after assignment.
	Load     map[string]float64 `json:"load"`
	Excluded []Exclusion        `json:"excluded,omitempty"`
}

// TaskCount returns the number of assigned tasks.
func (d Distribution) TaskCount() int {
	n := 0
	for _, ts := range d.Assignments {
		n += len(ts)
	}
	return n
}

// DistributeTasks assigns tasks greedily, heaviest first, each to the host
// with the lowest simulated load. Hosts that cannot be measured receive
// nothing and are listed in Excluded.
func (b *Balancer) DistributeTasks(ctx context.Context, tasks []config.Task, hosts []string) Distribution {
	d := Distribution{
		Assignments: map[string][]config.Task{},
		Load:        map[string]float64{},
	}
	if len(tasks) == 0 || len(hosts) == 0 {
		return d
	}

	measured, excluded := b.Probe(ctx, hosts)
	d.Excluded = excluded
	if len(measured) == 0 {
		b.logger().Warn("no host could be measured; nothing distributed", zap.Int("tasks", len(tasks)))
		return d
	}

	for _, m := range measured {
		d.Hosts = append(d.Hosts, m.Host)
		d.Assignments[m.Host] = []config.Task{}
		d.Load[m.Host] = m.LoadScore
	}

	sorted := make([]config.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveWeight() > sorted[j].EffectiveWeight()
	})

	step := b.taskLoadStep()
	for _, t := range sorted {
		host := d.Hosts[0]
		for _, h := range d.Hosts[1:] {
			if d.Load[h] < d.Load[host] {
				host = h
			}
		}
		d.Assignments[host] = append(d.Assignments[host], t)
		d.Load[host] += float64(t.EffectiveWeight()) * step
	}

	b.logger().Debug("distributed tasks",
		zap.Int("tasks", len(tasks)),
		zap.Int("hosts", len(d.Hosts)),
		zap.Int("excluded", len(excluded)))
	return d
}
