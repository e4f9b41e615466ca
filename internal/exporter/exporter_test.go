package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/metrics"
)

type fakeProber struct {
	measured []metrics.MachineMetrics
	excluded []balancer.Exclusion
	asked    []string
}

func (f *fakeProber) Probe(ctx context.Context, hosts []string) ([]metrics.MachineMetrics, []balancer.Exclusion) {
	f.asked = hosts
	return f.measured, f.excluded
}

func (f *fakeProber) SelectOptimalHost(ctx context.Context, candidates []string, prefer string) balancer.Selection {
	f.asked = candidates
	if len(f.measured) == 0 {
		return balancer.Selection{Excluded: f.excluded}
	}
	return balancer.Selection{Host: f.measured[0].Host, Metrics: f.measured[0], Ranked: f.measured}
}

func staticHosts(hosts ...string) HostSource {
	return func() ([]string, error) { return hosts, nil }
}

func newFake() *fakeProber {
	return &fakeProber{
		measured: []metrics.MachineMetrics{
			metrics.NewMachineMetrics("web-01", 20, 40, 60, metrics.Fallbacks{}),
			metrics.NewMachineMetrics("web-02", 50, 50, 50, metrics.Fallbacks{CPU: true, Disk: true}),
		},
		excluded: []balancer.Exclusion{{Host: "web-03", Reason: "ssh: connection refused"}},
	}
}

func TestCollect_Up(t *testing.T) {
	e := New(newFake(), staticHosts("web-01", "web-02", "web-03"), nil)

	want := `
# HELP fleet_host_up Whether the host could be probed (1) or was excluded (0).
# TYPE fleet_host_up gauge
fleet_host_up{host="web-01"} 1
fleet_host_up{host="web-02"} 1
fleet_host_up{host="web-03"} 0
`
	err := testutil.CollectAndCompare(e, strings.NewReader(want), "fleet_host_up")
	require.NoError(t, err)
}

func TestCollect_Values(t *testing.T) {
	fp := newFake()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(New(fp, staticHosts("web-01", "web-02", "web-03"), nil)))

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "/" + lp.GetValue()
			}
			got[key] = m.GetGauge().GetValue()
		}
	}

	assert.InDelta(t, 20, got["fleet_host_cpu_percent/web-01"], 1e-9)
	assert.InDelta(t, 60, got["fleet_host_disk_percent/web-01"], 1e-9)
	assert.InDelta(t, 0.38, got["fleet_host_load_score/web-01"], 1e-9)
	assert.InDelta(t, 0.5, got["fleet_host_load_score/web-02"], 1e-9)
	assert.Equal(t, 2.0, got["fleet_host_estimated_fields/web-02"])
	assert.Equal(t, 0.0, got["fleet_host_estimated_fields/web-01"])
	_, hasExcludedCPU := got["fleet_host_cpu_percent/web-03"]
	assert.False(t, hasExcludedCPU, "excluded host must not report cpu")
	assert.Equal(t, []string{"web-01", "web-02", "web-03"}, fp.asked)
}

func TestCollect_Count(t *testing.T) {
	e := New(newFake(), staticHosts("web-01", "web-02", "web-03"), nil)
	// 6 series per measured host, 1 per excluded host, 1 scrape duration.
	assert.Equal(t, 14, testutil.CollectAndCount(e))
}

func TestCollect_HostSourceError(t *testing.T) {
	e := New(newFake(), func() ([]string, error) { return nil, errors.New("bad yaml") }, nil)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(e))
	_, err := reg.Gather()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad yaml")
}

func newServer(fp *fakeProber) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(New(fp, staticHosts("web-01", "web-02"), nil))
	return &Server{
		Registry: reg,
		Picker:   fp,
		Candidates: func(group string) ([]string, error) {
			switch group {
			case "", "web":
				return []string{"web-01", "web-02"}, nil
			case "BAD GROUP":
				return nil, fmt.Errorf("%w: bad group", config.ErrValidation)
			default:
				return nil, fmt.Errorf("%w: %s", balancer.ErrGroupNotFound, group)
			}
		},
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := httptest.NewServer(newServer(newFake()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fleet_host_load_score{host="web-01"}`)
}

func TestServer_Pick(t *testing.T) {
	srv := httptest.NewServer(newServer(newFake()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pick?group=web")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sel balancer.Selection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sel))
	assert.Equal(t, "web-01", sel.Host)
}

func TestServer_PickUnknownGroup(t *testing.T) {
	srv := httptest.NewServer(newServer(newFake()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pick?group=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PickInvalidGroup(t *testing.T) {
	srv := httptest.NewServer(newServer(newFake()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pick?group=BAD+GROUP")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_PickNoneMeasured(t *testing.T) {
	fp := &fakeProber{excluded: []balancer.Exclusion{{Host: "web-01", Reason: "timeout"}}}
	srv := httptest.NewServer(newServer(fp).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pick")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(newFake()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newServer(newFake()).ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
