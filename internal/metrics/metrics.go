// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the enrichment pipeline:
// - External API call volume and outcomes (Spotify, MusicBrainz, geocoder)
// - Rows merged per store table
// - Batch outcomes per task
// - Recorded enrichment failures
// - Circuit breaker state
//
// The pipeline is batch-shaped, so most metrics are counters scraped between
// runs rather than request histograms.

var (
	// External API metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phono_api_calls_total",
			Help: "Total number of external API calls",
		},
		[]string{"service", "operation", "outcome"}, // outcome: "success", "not_found", "auth", "transient", "error"
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phono_api_call_duration_seconds",
			Help:    "Duration of external API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	// Store metrics
	RowsMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phono_store_rows_merged_total",
			Help: "Total number of rows written into store tables",
		},
		[]string{"table"},
	)

	// Task metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phono_batches_total",
			Help: "Total number of enrichment batches processed",
		},
		[]string{"task", "status"}, // status: "success", "partial", "error"
	)

	TaskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phono_task_runs_total",
			Help: "Total number of task executions",
		},
		[]string{"task", "status"},
	)

	FailuresRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phono_failures_recorded_total",
			Help: "Total number of entity failures recorded for TTL suppression",
		},
		[]string{"domain"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phono_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phono_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phono_circuit_breaker_requests_total",
			Help: "Total number of requests seen by circuit breakers",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)
)
