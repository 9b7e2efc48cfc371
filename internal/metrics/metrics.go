// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus counters for pipeline observability.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ExtractionAttempts counts backend calls, including retries.
	ExtractionAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skill_pulse_extraction_attempts_total",
			Help: "Total extraction backend calls, including retries",
		},
	)

	// ExtractionRetries counts retried backend calls.
	ExtractionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skill_pulse_extraction_retries_total",
			Help: "Total extraction retries after transient failures",
		},
	)

	// ExtractionFailures counts per-document failures by kind.
	ExtractionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_pulse_extraction_failures_total",
			Help: "Total per-document extraction failures",
		},
		[]string{"kind"},
	)

	// NormalizationOutcomes counts normalization results by outcome:
	// exact, cleaned, fuzzy, ambiguous, unknown.
	NormalizationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_pulse_normalization_outcomes_total",
			Help: "Total normalization lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// Register adds all pipeline collectors to the default registry. Safe to call
// once per process; the CLI calls it from the root command.
func Register() {
	prometheus.MustRegister(
		ExtractionAttempts,
		ExtractionRetries,
		ExtractionFailures,
		NormalizationOutcomes,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
