// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the validator.
//
// # Description
//
// Metrics cover the asynchronous job pipeline and the inline matcher:
//   - Job counters (created, finished by terminal status)
//   - Job duration histogram
//   - Provider retry counter
//   - Sweeper eviction counter
//   - Active job gauge
//   - Inline batch counter by outcome
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Initialize once at
// startup via InitMetrics(); all record helpers are nil-safe so unit
// tests that skip initialization stay silent.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "citations"

// Subsystem for validation metrics
const validationSubsystem = "validation"

// ValidationMetrics holds all Prometheus metrics for the job pipeline.
type ValidationMetrics struct {
	// JobsCreatedTotal counts jobs accepted by the async endpoint.
	JobsCreatedTotal prometheus.Counter

	// JobsFinishedTotal counts jobs by terminal status.
	// Labels: status (completed, failed)
	JobsFinishedTotal *prometheus.CounterVec

	// JobDurationSeconds measures time from runner start to terminal state.
	// Labels: status (completed, failed)
	JobDurationSeconds *prometheus.HistogramVec

	// ProviderRetriesTotal counts retried provider calls.
	ProviderRetriesTotal prometheus.Counter

	// JobsSweptTotal counts jobs evicted by the cleanup sweeper.
	JobsSweptTotal prometheus.Counter

	// ActiveJobs tracks the current size of the job table.
	ActiveJobs prometheus.Gauge

	// InlineBatchesTotal counts inline-matching batches by outcome.
	// Labels: outcome (ok, degraded)
	InlineBatchesTotal *prometheus.CounterVec
}

var (
	metrics     *ValidationMetrics
	metricsOnce sync.Once
)

// InitMetrics registers all validator metrics with the default registry.
// Safe to call more than once; only the first call registers.
func InitMetrics() {
	metricsOnce.Do(func() {
		metrics = &ValidationMetrics{
			JobsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "jobs_created_total",
				Help:      "Number of asynchronous validation jobs accepted.",
			}),
			JobsFinishedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "jobs_finished_total",
				Help:      "Number of jobs that reached a terminal state.",
			}, []string{"status"}),
			JobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "job_duration_seconds",
				Help:      "Time from runner start to terminal state.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			}, []string{"status"}),
			ProviderRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "provider_retries_total",
				Help:      "Number of retried LLM provider calls.",
			}),
			JobsSweptTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "jobs_swept_total",
				Help:      "Number of job records evicted by the sweeper.",
			}),
			ActiveJobs: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "active_jobs",
				Help:      "Current number of tracked job records.",
			}),
			InlineBatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "inline_batches_total",
				Help:      "Inline-matching batches by outcome.",
			}, []string{"outcome"}),
		}
	})
}

// RecordJobCreated increments the created counter.
func RecordJobCreated() {
	if metrics != nil {
		metrics.JobsCreatedTotal.Inc()
	}
}

// RecordJobFinished records a terminal transition and its duration.
func RecordJobFinished(status string, seconds float64) {
	if metrics != nil {
		metrics.JobsFinishedTotal.WithLabelValues(status).Inc()
		metrics.JobDurationSeconds.WithLabelValues(status).Observe(seconds)
	}
}

// RecordProviderRetry increments the retry counter.
func RecordProviderRetry() {
	if metrics != nil {
		metrics.ProviderRetriesTotal.Inc()
	}
}

// RecordSwept adds n to the sweeper eviction counter.
func RecordSwept(n int) {
	if metrics != nil {
		metrics.JobsSweptTotal.Add(float64(n))
	}
}

// SetActiveJobs updates the job-table gauge.
func SetActiveJobs(n int) {
	if metrics != nil {
		metrics.ActiveJobs.Set(float64(n))
	}
}

// RecordInlineBatch counts one inline-matching batch by outcome.
func RecordInlineBatch(outcome string) {
	if metrics != nil {
		metrics.InlineBatchesTotal.WithLabelValues(outcome).Inc()
	}
}
