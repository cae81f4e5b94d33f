// Package metrics exposes Prometheus collectors for the simulation
// pipeline as package-var promauto collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModuleDuration observes each pipeline module's wall-clock time.
	ModuleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "core_engine_module_duration_seconds",
		Help:    "Wall-clock execution time of one simulation pipeline module",
		Buckets: prometheus.DefBuckets,
	}, []string{"module"})

	// RunsTotal counts completed runs by terminal state.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "core_engine_runs_total",
		Help: "The total number of simulation runs by terminal state",
	}, []string{"state"})

	// GuardrailViolationsTotal counts advisory guardrail violations raised
	// by any module, by error type.
	GuardrailViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "core_engine_guardrail_violations_total",
		Help: "The total number of guardrail violations recorded, by error type",
	}, []string{"type"})

	// ActiveRuns gauges the number of runs currently executing.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "core_engine_active_runs",
		Help: "The current number of simulation runs in progress",
	})

	// LoansGenerated observes portfolio size per run.
	LoansGenerated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "core_engine_loans_generated",
		Help:    "The number of loans generated per simulation run",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
	})
)

// ObserveRun records the module timings, terminal state, and guardrail
// violation counts of one completed orchestrator run.
func ObserveRun(state string, moduleSeconds map[string]float64, violationTypes []string, numLoans int) {
	RunsTotal.WithLabelValues(state).Inc()
	for module, seconds := range moduleSeconds {
		ModuleDuration.WithLabelValues(module).Observe(seconds)
	}
	for _, t := range violationTypes {
		GuardrailViolationsTotal.WithLabelValues(t).Inc()
	}
	LoansGenerated.Observe(float64(numLoans))
}
