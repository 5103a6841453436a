// Package queue provides the bounded admission queue and the worker pool
// that drains it.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull means the admission queue cannot take another job; the
// caller translates it into a backpressure response.
var ErrQueueFull = errors.New("admission queue full")

// Job is one unit of queued work: an accepted upload waiting for a worker.
type Job struct {
	ID         string
	MediaPath  string
	EnqueuedAt time.Time
}

// Executor runs one job to its terminal state. The executor owns the
// entire job lifecycle internally: sampling, inspection, fusion, and the
// terminal store write all happen inside Execute. The worker only handles
// claiming, the cancel registry, and gauge upkeep. A returned error is for
// logging; the job record already carries the failure.
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// PoolHealth is a point-in-time snapshot of the worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveJobs    int            `json:"active_jobs"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth is a point-in-time snapshot of a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
