// Package service wires the matching engine and the pledge-lock pipeline
// behind the operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/backr/internal/adapters/ledger"
	lockqueue "github.com/okian/backr/internal/adapters/mq/queue"
	workerpool "github.com/okian/backr/internal/adapters/mq/worker"
	"github.com/okian/backr/internal/adapters/repository"
	"github.com/okian/backr/internal/domain/dedupe"
	"github.com/okian/backr/internal/domain/matching"
	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/internal/domain/types"
	"github.com/okian/backr/pkg/logger"
	"github.com/okian/backr/pkg/metrics"
)

const (
	DefaultSuggestionLimit = 5
	MaxSuggestionLimit     = 10

	defaultSuggestionTimeout = 2 * time.Second
	shutdownTimeout          = 10 * time.Second
)

// Lock acknowledgement statuses.
const (
	LockStatusQueued    = "queued"
	LockStatusDuplicate = "duplicate"
)

// Service implements the API dependencies for the matching system.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	ledger  ledger.Client
	scorer  matching.Scorer
	deduper dedupe.Deduper
	queue   *lockqueue.InMemoryQueue
	pool    *workerpool.Pool

	// backings with a lock job queued or running
	inflightMu sync.Mutex
	inflight   map[string]struct{}

	workerCount       int
	queueSize         int
	dedupeSize        int
	dedupeTTL         time.Duration
	defaultLimit      int
	maxLimit          int
	suggestionTimeout time.Duration

	started bool
	logger  logger.Logger
}

// New constructs a Service. Components that need goroutines are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU(),
		queueSize:         1024,
		dedupeSize:        dedupe.DefaultMaxSize,
		defaultLimit:      DefaultSuggestionLimit,
		maxLimit:          MaxSuggestionLimit,
		suggestionTimeout: defaultSuggestionTimeout,
		inflight:          make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.ledger == nil {
		s.ledger = ledger.NewMockClient()
	}
	if s.scorer == nil {
		s.scorer = matching.NewRuleScorer()
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.Named("service")
	return s
}

// Start creates the dedupe cache, the lock queue and the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting backr service...")

	dedupeOpts := []dedupe.Option{dedupe.WithMaxSize(s.dedupeSize)}
	if s.dedupeTTL > 0 {
		dedupeOpts = append(dedupeOpts, dedupe.WithTTL(s.dedupeTTL))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupeOpts...)
	s.queue = lockqueue.NewInMemoryQueue(lockqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.ledger, s.store, s.deduper,
		workerpool.WithPoolLogger(s.logger),
		workerpool.WithPoolJobDone(func(_ context.Context, job model.LockJob) {
			s.releaseBacking(job.BackingID)
		}),
	)
	// workers outlive the start request
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "backr service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the lock queue. The store belongs to the caller and stays open.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping backr service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "backr service stopped")
}

// NormalizeLimit maps a requested suggestion count onto [1, max].
// Non-positive values select the default.
func (s *Service) NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > s.maxLimit:
		return s.maxLimit
	default:
		return limit
	}
}

// GetSuggestions ranks collaboration candidates for entityID. It never
// fails: every error degrades to an empty list and is logged.
func (s *Service) GetSuggestions(ctx context.Context, entityID string, limit int) (result types.SuggestionResult) {
	start := time.Now()
	limit = s.NormalizeLimit(limit)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "suggestion computation panicked",
				logger.String("entity_id", entityID),
				logger.Any("panic", r),
			)
			metrics.RecordSuggestionFailure("panic")
			result = types.EmptySuggestions()
		}
		metrics.RecordSuggestionLatency(float64(time.Since(start).Microseconds()) / 1000)
		metrics.RecordSuggestionsServed(len(result.Suggestions))
	}()

	if s.suggestionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.suggestionTimeout)
		defer cancel()
	}

	var (
		source     *model.Entity
		candidates []model.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(recoverAs("load source", func() error {
		e, err := s.store.FindEntityByID(gctx, entityID)
		if err != nil {
			return fmt.Errorf("load source: %w", err)
		}
		source = e
		return nil
	}))
	g.Go(recoverAs("load candidates", func() error {
		c, err := s.store.FindCandidates(gctx, entityID)
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
		candidates = c
		return nil
	}))

	if err := g.Wait(); err != nil {
		stage := "store"
		switch {
		case errors.Is(err, repository.ErrNotFound):
			stage = "source_not_found"
			s.logger.Debug(ctx, "suggestions requested for unknown entity", logger.String("entity_id", entityID))
		case errors.Is(err, errLoadPanic):
			stage = "panic"
			s.logger.Error(ctx, "suggestion load panicked",
				logger.String("entity_id", entityID),
				logger.Error(err),
			)
		default:
			s.logger.Warn(ctx, "suggestions unavailable",
				logger.String("entity_id", entityID),
				logger.Error(err),
			)
		}
		metrics.RecordSuggestionFailure(stage)
		return types.EmptySuggestions()
	}

	metrics.RecordCandidatePoolSize(len(candidates))
	return types.SuggestionResult{
		Suggestions: matching.Rank(s.scorer, matching.NewProfile(source), candidates, limit),
		Strategy:    s.scorer.Strategy(),
	}
}

// recoverAs runs fn and turns a panic into an error wrapping errLoadPanic.
// errgroup goroutines are outside the caller's recover.
func recoverAs(stage string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: %w: %v", stage, errLoadPanic, r)
			}
		}()
		return fn()
	}
}

// RequestLock queues the conversion of a PLEDGED backing into locked funds.
// idempotencyKey defaults to the backing id.
func (s *Service) RequestLock(ctx context.Context, backingID, idempotencyKey string) (types.LockAck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.LockAck{}, ErrNotStarted
	}
	if backingID == "" {
		return types.LockAck{}, fmt.Errorf("%w: backing id is required", ErrInvalidArgument)
	}

	b, err := s.store.GetBacking(ctx, backingID)
	if err != nil {
		return types.LockAck{}, err
	}

	key := idempotencyKey
	if key == "" {
		key = backingID
	}
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordLockDuplicate()
		s.logger.Debug(ctx, "duplicate lock request", logger.String("idempotency_key", key))
		return types.LockAck{Status: LockStatusDuplicate, Duplicate: true}, nil
	}

	if b.Status != model.BackingPledged {
		s.deduper.Unrecord(ctx, key)
		return types.LockAck{}, fmt.Errorf("%w: backing %s is %s", ErrInvalidState, b.ID, b.Status)
	}
	if !s.claimBacking(b.ID) {
		s.deduper.Unrecord(ctx, key)
		return types.LockAck{}, fmt.Errorf("%w: backing %s already has a lock in flight", ErrInvalidState, b.ID)
	}

	job := model.LockJob{
		JobID:          uuid.NewString(),
		IdempotencyKey: key,
		BackingID:      b.ID,
		PartyID:        b.PartyID,
		Amount:         b.Amount,
		EnqueuedAt:     time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, key)
		s.releaseBacking(b.ID)
		if errors.Is(err, lockqueue.ErrFull) {
			metrics.RecordLockRejected()
			return types.LockAck{}, ErrBackpressure
		}
		return types.LockAck{}, fmt.Errorf("enqueue lock job: %w", err)
	}

	metrics.RecordLockEnqueued()
	s.logger.Info(ctx, "lock job queued",
		logger.String("job_id", job.JobID),
		logger.String("backing_id", job.BackingID),
	)
	return types.LockAck{Status: LockStatusQueued, JobID: job.JobID}, nil
}

// claimBacking marks id as in flight. It reports false if it already was.
func (s *Service) claimBacking(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) releaseBacking(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

func (s *Service) inflightCount() int {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	return len(s.inflight)
}

// Balance returns a party's ledger balance.
func (s *Service) Balance(ctx context.Context, partyID string) (types.Balance, error) {
	if partyID == "" {
		return types.Balance{}, fmt.Errorf("%w: party id is required", ErrInvalidArgument)
	}
	b, err := s.ledger.Balance(ctx, partyID)
	if err != nil {
		return types.Balance{}, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return b, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	totalEntities := s.store.Count(ctx)
	metrics.UpdateTotalEntities(totalEntities)

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"strategy":      s.scorer.Strategy(),
		"totalEntities": totalEntities,
	}
	if s.started {
		poolStats := s.pool.Stats()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["idempotencyKeys"] = s.deduper.Size()
		stats["locksProcessed"] = poolStats.Processed
		stats["locksFailed"] = poolStats.Failed
		stats["locksInFlight"] = s.inflightCount()
	}
	return stats
}
