package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts probe outcomes. A nil *Recorder records nothing.
type Recorder struct {
	Probes    *prometheus.CounterVec
	Fallbacks *prometheus.CounterVec
	Duration  prometheus.Histogram
}

// NewRecorder creates the probe collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_probes_total",
			Help: "Host probes by result.",
		}, []string{"result"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_probe_fallbacks_total",
			Help: "Probe fields defaulted because they could not be measured.",
		}, []string{"field"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_probe_duration_seconds",
			Help:    "Time to probe a single host.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
	}
	if reg != nil {
		reg.MustRegister(r.Probes, r.Fallbacks, r.Duration)
	}
	return r
}

func (r *Recorder) observe(m MachineMetrics, took time.Duration) {
	if r == nil {
		return
	}
	r.Probes.WithLabelValues("ok").Inc()
	r.Duration.Observe(took.Seconds())
	if m.Fallbacks.CPU {
		r.Fallbacks.WithLabelValues("cpu").Inc()
	}
	if m.Fallbacks.Mem {
		r.Fallbacks.WithLabelValues("mem").Inc()
	}
	if m.Fallbacks.Disk {
		r.Fallbacks.WithLabelValues("disk").Inc()
	}
}

func (r *Recorder) observeFailure(took time.Duration) {
	if r == nil {
		return
	}
	r.Probes.WithLabelValues("error").Inc()
	r.Duration.Observe(took.Seconds())
}
