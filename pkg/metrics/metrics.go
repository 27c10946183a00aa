// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProfilesCompleted counts profiling runs by dialect and outcome (complete, partial, failed).
	ProfilesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quality",
		Subsystem: "profile",
		Name:      "runs_total",
		Help:      "Profiling runs by dialect and outcome.",
	}, []string{"dialect", "outcome"})

	// MetricQueryFailures counts metric queries that degraded a column to partial.
	MetricQueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quality",
		Subsystem: "profile",
		Name:      "metric_query_failures_total",
		Help:      "Metric queries that failed during profiling, by metric.",
	}, []string{"metric"})

	// AnomaliesDetected counts anomalies by severity.
	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quality",
		Subsystem: "profile",
		Name:      "anomalies_total",
		Help:      "Anomalies detected when comparing profiles, by severity.",
	}, []string{"severity"})

	// RuleResults counts evaluated rules by result (passed, failed, error).
	RuleResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quality",
		Subsystem: "validation",
		Name:      "rule_results_total",
		Help:      "Evaluated validation rules by result.",
	}, []string{"result"})
)

const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"

	ResultPassed = "passed"
	ResultFailed = "failed"
	ResultError  = "error"
)

func init() {
	// Initialise each label set so series exist before the first run.
	for _, r := range []string{ResultPassed, ResultFailed, ResultError} {
		RuleResults.WithLabelValues(r)
	}
	for _, s := range []string{"medium", "high"} {
		AnomaliesDetected.WithLabelValues(s)
	}
}
