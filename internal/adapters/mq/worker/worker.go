// Package worker converts queued pledges into locked ledger balances.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/backr/internal/adapters/ledger"
	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/pkg/logger"
	"github.com/okian/backr/pkg/metrics"
)

const defaultWorkerMultiplier = 2

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.LockJob
}

// Locker locks funds on the ledger.
type Locker interface {
	LockFunds(ctx context.Context, req ledger.LockRequest) (ledger.LockReceipt, error)
}

// BackingStore reads a backing before the lock and persists the outcome.
type BackingStore interface {
	GetBacking(ctx context.Context, id string) (*model.Backing, error)
	UpdateBackingStatus(ctx context.Context, id string, from, to model.BackingStatus, ledgerRef string) error
}

// KeyReleaser forgets an idempotency key so the client can retry.
type KeyReleaser interface {
	Unrecord(ctx context.Context, key string)
}

// Worker processes lock jobs until its queue is closed.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	locker  Locker
	backing BackingStore
	keys    KeyReleaser
	onDone  func(ctx context.Context, job model.LockJob)
	name    string
	logger  logger.Logger

	processed *atomic.Int64
	failed    *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, locker Locker, backing BackingStore, keys KeyReleaser, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		locker:    locker,
		backing:   backing,
		keys:      keys,
		name:      "worker",
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run consumes jobs until the queue channel closes, ctx is cancelled or
// Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "lock job failed",
					logger.String("job_id", job.JobID),
					logger.String("backing_id", job.BackingID),
					logger.Error(err),
				)
			}
			if w.onDone != nil {
				w.onDone(ctx, job)
			}
		}
	}
}

// Shutdown stops the worker without draining and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job model.LockJob) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	b, err := w.backing.GetBacking(ctx, job.BackingID)
	if err != nil {
		w.failed.Add(1)
		metrics.RecordLockFailed()
		metrics.RecordErrorByComponent("worker", "store")
		w.keys.Unrecord(ctx, job.IdempotencyKey)
		return fmt.Errorf("load backing %s: %w", job.BackingID, err)
	}
	if b.Status != model.BackingPledged {
		// moved on after the job was queued; locking now would double-lock
		metrics.RecordLockSkipped()
		w.keys.Unrecord(ctx, job.IdempotencyKey)
		w.logger.Warn(ctx, "skipping lock job for backing that is no longer pledged",
			logger.String("job_id", job.JobID),
			logger.String("backing_id", job.BackingID),
			logger.String("status", string(b.Status)),
		)
		return nil
	}

	receipt, err := w.locker.LockFunds(ctx, ledger.LockRequest{
		CommandID: job.JobID,
		BackingID: job.BackingID,
		PartyID:   job.PartyID,
		Amount:    job.Amount,
	})
	if err != nil {
		w.failed.Add(1)
		metrics.RecordLockFailed()
		metrics.RecordErrorByComponent("worker", "ledger")
		// nothing was locked, so the same key may be submitted again
		w.keys.Unrecord(ctx, job.IdempotencyKey)
		return fmt.Errorf("lock funds for backing %s: %w", job.BackingID, err)
	}

	if err := w.backing.UpdateBackingStatus(ctx, job.BackingID, model.BackingPledged, model.BackingLocked, receipt.ContractID); err != nil {
		// Funds are locked on the ledger. The key stays recorded so a retry
		// cannot lock twice; the contract id in the log is enough to reconcile.
		w.failed.Add(1)
		metrics.RecordLockFailed()
		metrics.RecordErrorByComponent("worker", "store")
		return fmt.Errorf("mark backing %s locked (contract %s): %w", job.BackingID, receipt.ContractID, err)
	}

	w.processed.Add(1)
	metrics.RecordLockSucceeded()
	w.logger.Info(ctx, "backing locked",
		logger.String("job_id", job.JobID),
		logger.String("backing_id", job.BackingID),
		logger.String("contract_id", receipt.ContractID),
	)
	return nil
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	onDone  func(ctx context.Context, job model.LockJob)
	logger  logger.Logger

	started   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
}

// PoolStats summarises the work done by a pool.
type PoolStats struct {
	Workers   int   `json:"workers"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// NewPool creates workerCount workers. A count below 1 uses a multiple of NumCPU.
func NewPool(workerCount int, q Queue, locker Locker, backing BackingStore, keys KeyReleaser, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get()
	}
	p.logger = p.logger.Named("worker-pool")

	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(q, locker, backing, keys,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
			WithJobDone(p.onDone),
		)
		w.processed = &p.processed
		w.failed = &p.failed
		p.workers[i] = w
	}
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Stats returns counters accumulated since the pool was created.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:   len(p.workers),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them
// until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
	return nil
}
