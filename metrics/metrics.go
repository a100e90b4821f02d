// Package metrics exposes Prometheus instrumentation for the orchestrator:
// run outcomes, stage transitions, tool invocations, and repair rounds.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector in one registry so tests can create
// isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	stageTransitions *prometheus.CounterVec
	toolInvocations  *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	repairRounds     prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfarer_runs_total",
		Help: "Completed planning runs by final status.",
	}, []string{"status"})

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wayfarer_run_duration_seconds",
		Help:    "Wall-clock duration of planning runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	m.stageTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfarer_stage_transitions_total",
		Help: "Orchestration stage transitions.",
	}, []string{"stage"})

	m.toolInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfarer_tool_invocations_total",
		Help: "Tool invocations by tool and outcome.",
	}, []string{"tool", "outcome"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wayfarer_tool_duration_seconds",
		Help:    "Tool invocation duration.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"tool"})

	m.repairRounds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wayfarer_repair_rounds",
		Help:    "Repair rounds needed per run.",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 7, 10},
	})

	m.registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.stageTransitions,
		m.toolInvocations,
		m.toolDuration,
		m.repairRounds,
	)
	return m
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// ObserveStage records one stage transition.
func (m *Metrics) ObserveStage(stage string) {
	m.stageTransitions.WithLabelValues(stage).Inc()
}

// ObserveToolInvocation records a tool call. Satisfies the tools package
// Observer contract.
func (m *Metrics) ObserveToolInvocation(tool string, duration time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.toolInvocations.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveRepairRounds records how many repair rounds a run needed.
func (m *Metrics) ObserveRepairRounds(rounds int) {
	m.repairRounds.Observe(float64(rounds))
}

// Handler serves this registry's metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
