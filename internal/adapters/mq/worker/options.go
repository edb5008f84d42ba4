package worker

import (
	"context"

	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/pkg/logger"
)

// Option applies a configuration option to an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithJobDone registers fn to run after every job, whatever its outcome.
func WithJobDone(fn func(ctx context.Context, job model.LockJob)) Option {
	return func(w *InMemoryWorker) {
		w.onDone = fn
	}
}

// PoolOption applies a configuration option to a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger shared by the pool and its workers.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPoolJobDone registers fn on every worker of the pool. See WithJobDone.
func WithPoolJobDone(fn func(ctx context.Context, job model.LockJob)) PoolOption {
	return func(p *Pool) {
		p.onDone = fn
	}
}
