// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ExportsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_normalized_total",
			Help: "Exports normalized, by platform",
		},
		[]string{"platform"},
	)

	ExportsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_rejected_total",
			Help: "Uploads rejected, by error code",
		},
		[]string{"error_code"},
	)

	ProfilesMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiles_merged_total",
			Help: "Uploads merged into an existing profile, by platform",
		},
		[]string{"platform"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of ingest pipeline stages in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"stage", "status"},
	)

	ConsentCategoriesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_categories_removed_total",
			Help: "Data categories removed by the consent filter",
		},
		[]string{"category"},
	)
)
