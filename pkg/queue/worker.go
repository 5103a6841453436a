package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veracity-labs/veracity/pkg/metrics"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// jobRegistry is the subset of WorkerPool used by Worker for cancel
// registration.
type jobRegistry interface {
	RegisterJob(jobID string, cancel context.CancelFunc)
	UnregisterJob(jobID string)
}

// Worker claims jobs from the admission queue and runs them through the
// executor one at a time.
type Worker struct {
	id       string
	queue    *Queue
	executor Executor
	registry jobRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a worker bound to the queue and executor.
func NewWorker(id string, q *Queue, executor Executor, registry jobRegistry) *Worker {
	return &Worker{
		id:           id,
		queue:        q,
		executor:     executor,
		registry:     registry,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// signalStop asks the worker to exit after its current job without waiting
// for it. The pool uses this to stop all claims before cancelling in-flight
// jobs.
func (w *Worker) signalStop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Stop signals the worker and waits for its current job to finish.
func (w *Worker) Stop() {
	w.signalStop()
	w.wg.Wait()
}

// Health returns a snapshot of the worker's state.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for {
		// Check for shutdown first so a closed stopCh always wins over a
		// non-empty queue.
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
		}

		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		case job := <-w.queue.ch:
			metrics.QueueDepth.Set(float64(len(w.queue.ch)))
			w.process(ctx, job)
		}
	}
}

// process runs a single claimed job. The job's cancel function is registered
// with the pool before the executor starts so the cancel API and shutdown
// can always reach it.
func (w *Worker) process(ctx context.Context, job Job) {
	log := slog.With("worker_id", w.id, "job_id", job.ID)
	log.Info("Job claimed",
		"queued_for", time.Since(job.EnqueuedAt).Round(time.Millisecond).String())

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.registry.RegisterJob(job.ID, cancel)
	defer w.registry.UnregisterJob(job.ID)

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	start := time.Now()
	if err := w.executor.Execute(jobCtx, job); err != nil {
		log.Error("Job execution failed",
			"error", err,
			"duration", time.Since(start).Round(time.Millisecond).String())
	} else {
		log.Info("Job processing complete",
			"duration", time.Since(start).Round(time.Millisecond).String())
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()
}

func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
