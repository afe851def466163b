package hpo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments runs. A nil *Metrics records nothing.
type Metrics struct {
	evaluations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	spent       *prometheus.GaugeVec
	best        *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the run metrics with reg. Use a fresh
// prometheus.NewRegistry() per test; prometheus.DefaultRegisterer in binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hpo_evaluations_total",
			Help: "Total evaluations by strategy",
		}, []string{"strategy"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hpo_evaluation_failures_total",
			Help: "Total failed evaluations by strategy",
		}, []string{"strategy"}),

		spent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hpo_budget_spent",
			Help: "Budget consumed by the current run, in minimum-budget units",
		}, []string{"strategy"}),

		best: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hpo_best_result",
			Help: "Best result observed by the current run",
		}, []string{"strategy"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hpo_evaluation_duration_seconds",
			Help:    "Evaluation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12), // 0.1ms to ~7min
		}, []string{"strategy"}),
	}
}

func (m *Metrics) observeEvaluation(strategy string, took time.Duration, failed bool) {
	if m == nil {
		return
	}

	m.evaluations.WithLabelValues(strategy).Inc()
	m.duration.WithLabelValues(strategy).Observe(took.Seconds())

	if failed {
		m.failures.WithLabelValues(strategy).Inc()
	}
}

func (m *Metrics) observeProgress(strategy string, spent, best float64) {
	if m == nil {
		return
	}

	m.spent.WithLabelValues(strategy).Set(spent)
	m.best.WithLabelValues(strategy).Set(best)
}
