package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors the scheduler updates. Shape
// mirrors the teacher's job-stage metrics: a duration histogram sliced by
// status, plus retry/failure counters and a gauge of the peak number of
// WPs in flight.
type Metrics struct {
	parallelPeak         prometheus.Gauge
	totalAgentInvocations prometheus.Counter
	stageDuration        *prometheus.HistogramVec
	stageRetries         *prometheus.CounterVec
	stageFailures        *prometheus.CounterVec
}

// MustNewMetrics registers the orchestrator's metrics against registry and
// panics on registration failure (mirrors the teacher's MustNewMetrics
// convention: a metrics registration failure is a programming error, not a
// runtime condition to recover from).
func MustNewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		parallelPeak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kittify_orchestrator_parallel_peak",
			Help: "Maximum number of WPs observed in flight simultaneously during the current run.",
		}),
		totalAgentInvocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kittify_orchestrator_agent_invocations_total",
			Help: "Total number of agent invocations (including retries and fallbacks) across all runs.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kittify_orchestrator_phase_duration_seconds",
			Help:    "Duration of a single WP phase invocation, labeled by agent and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent_id", "role", "status"}),
		stageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kittify_orchestrator_phase_retries_total",
			Help: "Number of same-agent retries performed for a WP phase.",
		}, []string{"agent_id", "role"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kittify_orchestrator_phase_failures_total",
			Help: "Number of WP phases that exhausted retry and fallback and were escalated.",
		}, []string{"agent_id", "role"}),
	}
	registry.MustRegister(m.parallelPeak, m.totalAgentInvocations, m.stageDuration, m.stageRetries, m.stageFailures)
	return m
}

// ObserveInvocation records one completed agent invocation attempt.
func (m *Metrics) ObserveInvocation(agentID string, role string, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.totalAgentInvocations.Inc()
	m.stageDuration.WithLabelValues(agentID, role, status).Observe(durationSeconds)
}

// ObserveRetry increments the retry counter for agentID/role.
func (m *Metrics) ObserveRetry(agentID, role string) {
	if m == nil {
		return
	}
	m.stageRetries.WithLabelValues(agentID, role).Inc()
}

// ObserveEscalation increments the failure counter for agentID/role.
func (m *Metrics) ObserveEscalation(agentID, role string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(agentID, role).Inc()
}

// SetParallelPeak records a new high-water mark for in-flight WP count.
func (m *Metrics) SetParallelPeak(n int) {
	if m == nil {
		return
	}
	m.parallelPeak.Set(float64(n))
}
