package queue

import (
	"github.com/veracity-labs/veracity/pkg/metrics"
)

// Queue is the bounded FIFO admission queue between the submit endpoint and
// the worker pool. Enqueue never blocks: when the buffer is full the job is
// rejected so the API can push back instead of piling up work.
type Queue struct {
	ch chan Job
}

// NewQueue creates a queue holding at most capacity pending jobs.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Job, capacity)}
}

// TryEnqueue adds the job without blocking. It returns ErrQueueFull when the
// queue is at capacity.
func (q *Queue) TryEnqueue(job Job) error {
	select {
	case q.ch <- job:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth returns the number of jobs waiting to be claimed.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Capacity returns the maximum number of pending jobs.
func (q *Queue) Capacity() int {
	return cap(q.ch)
}
