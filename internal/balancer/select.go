package balancer

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/jorge-barreto/fleet/internal/metrics"
)

// Selection is the outcome of SelectOptimalHost.
type Selection struct {
	Host      string                   `json:"host,omitempty"`
	Metrics   metrics.MachineMetrics   `json:"metrics"`
	Preferred bool                     `json:"preferred"`
	Ranked    []metrics.MachineMetrics `json:"ranked"`
	Excluded  []Exclusion              `json:"excluded,omitempty"`
}

// Found reports whether a host was selected.
func (s Selection) Found() bool { return s.Host != "" }

// SelectOptimalHost probes candidates and returns the one with the lowest
// load score. When preferGroup is set, the lowest-scoring member of that
// group wins if its score is within PreferWindow of the best.
func (b *Balancer) SelectOptimalHost(ctx context.Context, candidates []string, preferGroup string) Selection {
	if len(candidates) == 0 {
		return Selection{}
	}
	measured, excluded := b.Probe(ctx, candidates)
	sel := Selection{Excluded: excluded}
	if len(measured) == 0 {
		b.logger().Warn("no candidate could be measured", zap.Int("candidates", len(candidates)))
		return sel
	}

	ranked := rank(measured)
	sel.Ranked = ranked
	sel.Host = ranked[0].Host
	sel.Metrics = ranked[0]

	if preferGroup != "" {
		if m, ok := b.preferred(ranked, preferGroup); ok {
			sel.Host = m.Host
			sel.Metrics = m
			sel.Preferred = true
		}
	}

	b.logger().Debug("selected host",
		zap.String("host", sel.Host),
		zap.Float64("load_score", sel.Metrics.LoadScore),
		zap.Bool("preferred", sel.Preferred))
	return sel
}

// preferred returns the best-ranked member of group whose score is within
// the prefer window of ranked[0].
func (b *Balancer) preferred(ranked []metrics.MachineMetrics, group string) (metrics.MachineMetrics, bool) {
	members, err := b.groupMembers(group)
	if err != nil {
		b.logger().Warn("ignoring group preference", zap.String("group", group), zap.Error(err))
		return metrics.MachineMetrics{}, false
	}
	if len(members) == 0 {
		return metrics.MachineMetrics{}, false
	}
	in := make(map[string]bool, len(members))
	for _, h := range members {
		in[h] = true
	}

	limit := ranked[0].LoadScore * b.preferWindow()
	for _, m := range ranked {
		if in[m.Host] && m.LoadScore <= limit {
			return m, true
		}
	}
	return metrics.MachineMetrics{}, false
}

// rank returns a copy of ms sorted by ascending load score. Equal scores
// keep their input order.
func rank(ms []metrics.MachineMetrics) []metrics.MachineMetrics {
	out := make([]metrics.MachineMetrics, len(ms))
	copy(out, ms)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LoadScore < out[j].LoadScore
	})
	return out
}
