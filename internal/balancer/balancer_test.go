package balancer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jorge-barreto/fleet/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProber returns canned metrics. A host with no entry fails.
type fakeProber struct {
	mu      sync.Mutex
	scores  map[string]float64
	errs    map[string]error
	delay   time.Duration
	calls   []string
	active  atomic.Int32
	maxSeen atomic.Int32
}

// at builds metrics whose load score is pct/100.
func at(host string, pct float64) metrics.MachineMetrics {
	return metrics.NewMachineMetrics(host, pct, pct, pct, metrics.Fallbacks{})
}

func (f *fakeProber) GetMachineLoad(ctx context.Context, host string) (*metrics.MachineMetrics, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, host)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[host]; ok {
		return nil, err
	}
	pct, ok := f.scores[host]
	if !ok {
		return nil, errors.New("unreachable")
	}
	m := at(host, pct)
	return &m, nil
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type staticGroups map[string][]string

func (s staticGroups) Groups() (map[string][]string, error) { return s, nil }

type failingGroups struct{}

func (failingGroups) Groups() (map[string][]string, error) {
	return nil, errors.New("config unreadable")
}

func TestProbe_KeepsOrderAndExcludes(t *testing.T) {
	p := &fakeProber{
		scores: map[string]float64{"a": 10, "c": 30},
		errs:   map[string]error{"b": errors.New("ssh: connection refused")},
	}
	b := New(p, nil, nil)

	measured, excluded := b.Probe(context.Background(), []string{"a", "b", "c", "d", "a"})

	require.Len(t, measured, 2)
	assert.Equal(t, "a", measured[0].Host)
	assert.Equal(t, "c", measured[1].Host)
	assert.Equal(t, []Exclusion{
		{Host: "b", Reason: "ssh: connection refused"},
		{Host: "d", Reason: "unreachable"},
	}, excluded)
	assert.Equal(t, 4, p.callCount(), "duplicate hosts are probed once")
}

func TestProbe_RespectsConcurrencyLimit(t *testing.T) {
	p := &fakeProber{scores: map[string]float64{}, delay: 20 * time.Millisecond}
	hosts := []string{"h1", "h2", "h3", "h4", "h5", "h6"}
	for _, h := range hosts {
		p.scores[h] = 10
	}
	b := New(p, nil, nil)
	b.Concurrency = 2

	measured, _ := b.Probe(context.Background(), hosts)

	assert.Len(t, measured, len(hosts))
	assert.LessOrEqual(t, p.maxSeen.Load(), int32(2))
	assert.GreaterOrEqual(t, p.maxSeen.Load(), int32(1))
}

func TestProbe_RunsInParallel(t *testing.T) {
	p := &fakeProber{scores: map[string]float64{}, delay: 50 * time.Millisecond}
	hosts := []string{"h1", "h2", "h3", "h4"}
	for _, h := range hosts {
		p.scores[h] = 10
	}
	b := New(p, nil, nil)

	start := time.Now()
	b.Probe(context.Background(), hosts)
	assert.Less(t, time.Since(start), 180*time.Millisecond)
}

func TestProbe_OneFailureDoesNotCancelOthers(t *testing.T) {
	p := &fakeProber{
		scores: map[string]float64{"slow": 20},
		errs:   map[string]error{"bad": context.DeadlineExceeded},
		delay:  10 * time.Millisecond,
	}
	b := New(p, nil, nil)

	measured, excluded := b.Probe(context.Background(), []string{"bad", "slow"})

	require.Len(t, measured, 1)
	assert.Equal(t, "slow", measured[0].Host)
	require.Len(t, excluded, 1)
	assert.Equal(t, "bad", excluded[0].Host)
}
