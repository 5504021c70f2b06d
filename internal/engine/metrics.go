package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks per-skill invocation counts and latency, labelled by
// skill, tool, and outcome.
type Metrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the Engine's counter/histogram vectors with reg. A
// nil reg creates the vectors without registering them anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skill_engine_executions_total",
				Help: "Total number of tool executions by skill, tool, and outcome status.",
			},
			[]string{"skill", "tool", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skill_engine_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds, by skill and tool.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"skill", "tool"},
		),
	}
}

func (m *Metrics) observe(skill, tool, status string, duration time.Duration) {
	m.executions.WithLabelValues(skill, tool, status).Inc()
	m.duration.WithLabelValues(skill, tool).Observe(duration.Seconds())
}
