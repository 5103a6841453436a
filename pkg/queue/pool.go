package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerPool manages a pool of queue workers and the per-job cancel
// registry.
type WorkerPool struct {
	queue       *Queue
	executor    Executor
	workerCount int
	workers     []*Worker

	// Job cancel registry: job_id → cancel function
	activeJobs map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool
	stopping   bool
}

// NewWorkerPool creates a worker pool that drains q with workerCount
// workers.
func NewWorkerPool(q *Queue, executor Executor, workerCount int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		queue:       q,
		executor:    executor,
		workerCount: workerCount,
		workers:     make([]*Worker, 0, workerCount),
		activeJobs:  make(map[string]context.CancelFunc),
	}
}

// Start spawns the worker goroutines. It is safe to call multiple times;
// subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return nil
	}
	p.started = true

	slog.Info("Starting worker pool",
		"worker_count", p.workerCount,
		"queue_capacity", p.queue.Capacity())

	for i := 0; i < p.workerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.queue, p.executor, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	slog.Info("Worker pool started")
	return nil
}

// Stop shuts the pool down: workers stop claiming, in-flight jobs are
// cancelled, and Stop returns once every worker has written its terminal
// state and exited.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	// Stop claims first so cancelling the registry covers everything in
	// flight.
	for _, worker := range p.workers {
		worker.signalStop()
	}

	p.mu.Lock()
	p.stopping = true
	cancels := make([]context.CancelFunc, 0, len(p.activeJobs))
	ids := make([]string, 0, len(p.activeJobs))
	for id, cancel := range p.activeJobs {
		ids = append(ids, id)
		cancels = append(cancels, cancel)
	}
	p.mu.Unlock()

	if len(ids) > 0 {
		slog.Info("Cancelling in-flight jobs",
			"count", len(ids),
			"job_ids", ids)
	}
	for _, cancel := range cancels {
		cancel()
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	slog.Info("Worker pool stopped gracefully")
}

// RegisterJob stores a cancel function for manual cancellation. Jobs
// registered while the pool is stopping are cancelled immediately.
func (p *WorkerPool) RegisterJob(jobID string, cancel context.CancelFunc) {
	p.mu.Lock()
	p.activeJobs[jobID] = cancel
	stopping := p.stopping
	p.mu.Unlock()
	if stopping {
		cancel()
	}
}

// UnregisterJob removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterJob(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, jobID)
}

// Cancel triggers context cancellation for a running job. It returns true
// only for the call that actually fired the cancel, so a second Cancel for
// the same job reports false.
func (p *WorkerPool) Cancel(jobID string) bool {
	p.mu.Lock()
	cancel, ok := p.activeJobs[jobID]
	if ok {
		delete(p.activeJobs, jobID)
	}
	p.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	p.mu.RLock()
	activeJobs := len(p.activeJobs)
	p.mu.RUnlock()

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	return &PoolHealth{
		IsHealthy:     len(p.workers) > 0,
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(p.workers),
		ActiveJobs:    activeJobs,
		QueueDepth:    p.queue.Depth(),
		QueueCapacity: p.queue.Capacity(),
		WorkerStats:   workerStats,
	}
}
