// Package metrics defines the Prometheus collectors for the analysis
// pipeline. Register wires them into a registry once at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "jobs_submitted_total",
		Help:      "Total jobs accepted into the admission queue.",
	})

	JobsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "jobs_rejected_total",
		Help:      "Total submissions rejected before a job record was created, by reason.",
	}, []string{"reason"})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "jobs_completed_total",
		Help:      "Total jobs reaching a terminal state, by status and label.",
	}, []string{"status", "label"})

	ActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "veracity",
		Name:      "active_jobs",
		Help:      "Number of jobs currently running through the pipeline.",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "veracity",
		Name:      "admission_queue_depth",
		Help:      "Number of submitted jobs waiting for a worker.",
	})

	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "veracity",
		Name:      "job_duration_seconds",
		Help:      "End-to-end pipeline duration per job in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	SamplingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "veracity",
		Name:      "sampling_duration_seconds",
		Help:      "Duration of the media sampling stage in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	InspectorOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "inspector_outcomes_total",
		Help:      "Terminal inspector outcomes by inspector name and outcome kind.",
	}, []string{"inspector", "outcome"})

	InspectorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veracity",
		Name:      "inspector_duration_seconds",
		Help:      "Inspector execution duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"inspector"})

	FFmpegRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "ffmpeg_runs_total",
		Help:      "Total ffmpeg/ffprobe subprocess runs by tool and result.",
	}, []string{"tool", "result"})

	WebsocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "veracity",
		Name:      "websocket_connections",
		Help:      "Number of live WebSocket subscriber connections.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})
)

// Register registers every collector on the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		JobsSubmittedTotal,
		JobsRejectedTotal,
		JobsCompletedTotal,
		ActiveJobs,
		QueueDepth,
		JobDuration,
		SamplingDuration,
		InspectorOutcomesTotal,
		InspectorDuration,
		FFmpegRunsTotal,
		WebsocketConnections,
		HTTPRequestsTotal,
	)
}
