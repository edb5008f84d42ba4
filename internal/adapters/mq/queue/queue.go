// Package queue holds pending lock jobs between the HTTP layer and the
// worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job without blocking. It returns ErrFull when the
	// queue is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, job model.LockJob) error

	// Dequeue returns the channel workers read from. It is closed by Close.
	Dequeue(ctx context.Context) <-chan model.LockJob

	// Len returns the number of pending jobs.
	Len(ctx context.Context) int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan model.LockJob
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan model.LockJob, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job model.LockJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.jobs <- job:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordErrorByComponent("queue", "full")
		return ErrFull
	}
}

// Dequeue returns the job channel. Consumers share it.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan model.LockJob {
	return q.jobs
}

// Len returns the number of pending jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting jobs. Pending jobs remain readable until drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
