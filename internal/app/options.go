package service

import (
	"time"

	"github.com/okian/backr/internal/adapters/ledger"
	"github.com/okian/backr/internal/adapters/repository"
	"github.com/okian/backr/internal/domain/matching"
	"github.com/okian/backr/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the entity store. Defaults to an empty memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLedger sets the ledger client. Defaults to a mock ledger.
func WithLedger(client ledger.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.ledger = client
		}
	}
}

// WithScorer replaces the rule-based scorer.
func WithScorer(scorer matching.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithWorkerCount sets the number of lock workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the lock queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeTTL expires idempotency keys after ttl.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithSuggestionLimits sets the default and maximum suggestion counts.
// Invalid pairs are ignored.
func WithSuggestionLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit >= 1 && defaultLimit <= maxLimit {
			s.defaultLimit = defaultLimit
			s.maxLimit = maxLimit
		}
	}
}

// WithSuggestionTimeout bounds a single suggestion computation.
func WithSuggestionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.suggestionTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
