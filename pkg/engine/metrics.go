package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	Ticks         prometheus.Counter
	TickDuration  prometheus.Histogram
	PhaseDuration *prometheus.HistogramVec
	Dirty         *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	SolveFailures prometheus.Counter
	Entities      prometheus.Gauge
}

// frameBuckets spans sub-millisecond ticks up to a few dropped frames.
var frameBuckets = []float64{.0005, .001, .002, .004, .008, .016, .033, .066, .1}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lattice",
			Name:      "ticks_total",
			Help:      "Number of scheduler ticks run.",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lattice",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a scheduler tick.",
			Buckets:   frameBuckets,
		}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lattice",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of a scheduler phase.",
			Buckets:   frameBuckets,
		}, []string{"phase"}),
		Dirty: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Name:      "dirty_entities_total",
			Help:      "Entities taken from the dirty set, by kind.",
		}, []string{"kind"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Name:      "binding_deliveries_total",
			Help:      "Binding deliveries by outcome.",
		}, []string{"result"}),
		SolveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lattice",
			Name:      "layout_solve_failures_total",
			Help:      "Layout roots whose solve failed.",
		}),
		Entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lattice",
			Name:      "entities",
			Help:      "Live entities after the last tick.",
		}),
	}
}
