package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"stipple/internal/evo"
)

// Metrics exposes per-generation counters for a running evolution.
type Metrics struct {
	Generations       prometheus.Counter
	Evaluations       prometheus.Counter
	Improvements      prometheus.Counter
	BestError         prometheus.Gauge
	GenerationSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stipple",
			Name:      "generations_total",
			Help:      "Completed generations.",
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stipple",
			Name:      "evaluations_total",
			Help:      "Genes rendered and scored.",
		}),
		Improvements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stipple",
			Name:      "improvements_total",
			Help:      "Generations that improved the best of run.",
		}),
		BestError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stipple",
			Name:      "best_error",
			Help:      "Error of the best gene seen so far.",
		}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stipple",
			Name:      "generation_duration_seconds",
			Help:      "Wall time spent evaluating and breeding one generation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Generations, m.Evaluations, m.Improvements, m.BestError, m.GenerationSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one generation. It matches evo.MonitorConfig.Observer.
func (m *Metrics) Observe(s evo.GenerationStats) {
	m.Generations.Inc()
	m.Evaluations.Add(float64(s.Evaluated))
	if s.Improved {
		m.Improvements.Inc()
	}
	m.BestError.Set(s.BestOfRun)
	m.GenerationSeconds.Observe(s.Duration.Seconds())
}
