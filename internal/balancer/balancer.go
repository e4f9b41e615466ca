// Package balancer picks the least-loaded host and spreads weighted tasks
// across a fleet using metrics probed at call time.
package balancer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/fleet/internal/metrics"
)

const (
	// DefaultPreferWindow is how far above the best score a preferred-group
	// host may be and still win.
	DefaultPreferWindow = 1.2
	// DefaultTaskLoadStep is the simulated score added per unit of task
	// weight during distribution.
	DefaultTaskLoadStep = 0.1
	// DefaultConcurrency bounds parallel probes.
	DefaultConcurrency = 8
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNoMetrics     = errors.New("no metrics available")
)

// Prober measures a single host.
type Prober interface {
	GetMachineLoad(ctx context.Context, host string) (*metrics.MachineMetrics, error)
}

// GroupSource supplies group membership. Implementations may re-read their
// backing store on each call.
type GroupSource interface {
	Groups() (map[string][]string, error)
}

// Exclusion names a host left out of a decision and why.
type Exclusion struct {
	Host   string `json:"host"`
	Reason string `json:"reason"`
}

// Balancer ranks hosts by load score. It holds no state between calls.
type Balancer struct {
	Prober Prober
	Groups GroupSource
	Logger *zap.Logger

	Concurrency  int
	PreferWindow float64
	TaskLoadStep float64
}

// New returns a Balancer with default tunables.
func New(p Prober, groups GroupSource, logger *zap.Logger) *Balancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Balancer{
		Prober:       p,
		Groups:       groups,
		Logger:       logger,
		Concurrency:  DefaultConcurrency,
		PreferWindow: DefaultPreferWindow,
		TaskLoadStep: DefaultTaskLoadStep,
	}
}

// Probe measures hosts concurrently and returns the metrics that could be
// gathered in host order, plus an exclusion for every host that could not
// be measured. Duplicate host names are probed once.
func (b *Balancer) Probe(ctx context.Context, hosts []string) ([]metrics.MachineMetrics, []Exclusion) {
	hosts = uniqueHosts(hosts)
	results := make([]*metrics.MachineMetrics, len(hosts))
	errs := make([]error, len(hosts))

	// A plain Group: one host failing must not cancel the others.
	var g errgroup.Group
	g.SetLimit(b.concurrency())
	for i, host := range hosts {
		g.Go(func() error {
			results[i], errs[i] = b.Prober.GetMachineLoad(ctx, host)
			return nil
		})
	}
	_ = g.Wait()

	var measured []metrics.MachineMetrics
	var excluded []Exclusion
	for i, host := range hosts {
		switch {
		case errs[i] != nil:
			excluded = append(excluded, Exclusion{Host: host, Reason: errs[i].Error()})
		case results[i] == nil:
			excluded = append(excluded, Exclusion{Host: host, Reason: ErrNoMetrics.Error()})
		default:
			measured = append(measured, *results[i])
		}
	}
	if len(excluded) > 0 {
		b.logger().Warn("hosts excluded from snapshot",
			zap.Int("excluded", len(excluded)),
			zap.Int("measured", len(measured)))
	}
	return measured, excluded
}

// groupMembers returns the hosts of group, or nil when the source is unset,
// fails, or has no such group.
func (b *Balancer) groupMembers(group string) ([]string, error) {
	if b.Groups == nil {
		return nil, nil
	}
	groups, err := b.Groups.Groups()
	if err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}
	return groups[group], nil
}

func (b *Balancer) concurrency() int {
	if b.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return b.Concurrency
}

func (b *Balancer) preferWindow() float64 {
	if b.PreferWindow <= 0 {
		return DefaultPreferWindow
	}
	return b.PreferWindow
}

func (b *Balancer) taskLoadStep() float64 {
	if b.TaskLoadStep <= 0 {
		return DefaultTaskLoadStep
	}
	return b.TaskLoadStep
}

func (b *Balancer) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func uniqueHosts(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}
