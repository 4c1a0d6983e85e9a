package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "semcoach"

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
// It implements agent.Observer.
type Metrics struct {
	runs            *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "plan_runs_total",
			Help:      "Plan generation runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "outcome"}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "agent_attempts_total",
			Help:      "Agent attempts by agent and outcome.",
		}, []string{"agent", "outcome"}),
		attemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "agent_attempt_duration_seconds",
			Help:      "Duration of single agent attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"agent"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fallback_runs_total",
			Help:      "Fallback generator invocations by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveAttempt implements agent.Observer.
func (m *Metrics) ObserveAttempt(agentName, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(agentName, outcome).Inc()
	m.attemptDuration.WithLabelValues(agentName).Observe(elapsed.Seconds())
}

// ObserveStage records a stage duration.
func (m *Metrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveFallback counts a fallback invocation.
func (m *Metrics) ObserveFallback(outcome string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(outcome).Inc()
}
