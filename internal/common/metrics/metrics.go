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

	AgentInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_invocations_total",
			Help: "Specialist agent invocations by outcome",
		},
		[]string{"agent", "status"},
	)

	AgentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_duration_seconds",
			Help:    "Specialist agent latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"agent"},
	)

	ConductorRoutes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_routes_total",
			Help: "Queries by routing path (single, multi, fallback)",
		},
		[]string{"path"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Escalations by trigger and resulting status",
		},
		[]string{"trigger", "status"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Language model requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)
