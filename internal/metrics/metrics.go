// Package metrics declares the enrichment Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_runs_started_total",
			Help: "Total number of enrichment runs started",
		},
		[]string{"force_update"},
	)

	RunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_runs_finished_total",
			Help: "Total number of enrichment runs that reached a terminal status",
		},
		[]string{"status"},
	)

	RunsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enricher_runs_rejected_total",
			Help: "Enrichment requests rejected because a run was already in progress",
		},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enricher_run_duration_seconds",
			Help:    "End-to-end enrichment run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enricher_active_runs",
			Help: "Enrichment runs currently in progress",
		},
	)

	// Stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enricher_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_stage_failures_total",
			Help: "Pipeline stage failures by stage and error kind",
		},
		[]string{"stage", "kind"},
	)

	Cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_cancellations_observed_total",
			Help: "Cancellation requests observed at a stage checkpoint",
		},
		[]string{"stage"},
	)
)
