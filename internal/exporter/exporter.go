// Package exporter exposes fleet load as Prometheus metrics, probing the
// configured hosts on every scrape.
package exporter

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/metrics"
)

// DefaultScrapeTimeout bounds one full probe of the fleet.
const DefaultScrapeTimeout = 30 * time.Second

// Prober measures a set of hosts.
type Prober interface {
	Probe(ctx context.Context, hosts []string) ([]metrics.MachineMetrics, []balancer.Exclusion)
}

// HostSource lists the hosts to probe.
type HostSource func() ([]string, error)

var (
	upDesc = prometheus.NewDesc("fleet_host_up",
		"Whether the host could be probed (1) or was excluded (0).",
		[]string{"host"}, nil)
	cpuDesc = prometheus.NewDesc("fleet_host_cpu_percent",
		"Estimated CPU utilization.", []string{"host"}, nil)
	memDesc = prometheus.NewDesc("fleet_host_memory_percent",
		"Memory utilization.", []string{"host"}, nil)
	diskDesc = prometheus.NewDesc("fleet_host_disk_percent",
		"Root filesystem utilization.", []string{"host"}, nil)
	scoreDesc = prometheus.NewDesc("fleet_host_load_score",
		"Composite load score between 0 and 1.", []string{"host"}, nil)
	estimatedDesc = prometheus.NewDesc("fleet_host_estimated_fields",
		"Number of fields defaulted because they could not be measured.",
		[]string{"host"}, nil)
	scrapeDesc = prometheus.NewDesc("fleet_scrape_duration_seconds",
		"Time taken to probe the fleet.", nil, nil)
)

// Exporter is a prometheus.Collector that probes hosts when scraped.
type Exporter struct {
	Prober  Prober
	Hosts   HostSource
	Timeout time.Duration
	Logger  *zap.Logger
}

// New returns an Exporter with the default scrape timeout.
func New(p Prober, hosts HostSource, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{Prober: p, Hosts: hosts, Timeout: DefaultScrapeTimeout, Logger: logger}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{upDesc, cpuDesc, memDesc, diskDesc, scoreDesc, estimatedDesc, scrapeDesc} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	start := time.Now()
	hosts, err := e.Hosts()
	if err != nil {
		e.Logger.Error("listing hosts for scrape", zap.Error(err))
		ch <- prometheus.NewInvalidMetric(upDesc, err)
		return
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	measured, excluded := e.Prober.Probe(ctx, hosts)
	for _, m := range measured {
		ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, 1, m.Host)
		ch <- prometheus.MustNewConstMetric(cpuDesc, prometheus.GaugeValue, m.CPUPct, m.Host)
		ch <- prometheus.MustNewConstMetric(memDesc, prometheus.GaugeValue, m.MemPct, m.Host)
		ch <- prometheus.MustNewConstMetric(diskDesc, prometheus.GaugeValue, m.DiskPct, m.Host)
		ch <- prometheus.MustNewConstMetric(scoreDesc, prometheus.GaugeValue, m.LoadScore, m.Host)
		ch <- prometheus.MustNewConstMetric(estimatedDesc, prometheus.GaugeValue, float64(estimated(m.Fallbacks)), m.Host)
	}
	for _, ex := range excluded {
		ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, 0, ex.Host)
	}
	ch <- prometheus.MustNewConstMetric(scrapeDesc, prometheus.GaugeValue, time.Since(start).Seconds())

	e.Logger.Debug("scrape complete",
		zap.Int("measured", len(measured)),
		zap.Int("excluded", len(excluded)),
		zap.Duration("took", time.Since(start)))
}

func estimated(f metrics.Fallbacks) int {
	n := 0
	for _, b := range []bool{f.CPU, f.Mem, f.Disk} {
		if b {
			n++
		}
	}
	return n
}
