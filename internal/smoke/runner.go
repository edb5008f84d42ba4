package smoke

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/backr/internal/adapters/repository"
	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/pkg/logger"
)

// Run executes a complete smoke run against cfg.BaseURL.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	cfg := config.withDefaults()
	log := logger.Get().Named("smoke")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting backr smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("seedFile", cfg.SeedFile),
		logger.Int("limit", cfg.Limit),
		logger.Int("workers", cfg.Workers),
		logger.Any("locks", cfg.Locks))

	c := newClient(cfg)
	if err := c.healthy(ctx); err != nil {
		return stats, err
	}

	seed, err := repository.ReadSeed(cfg.SeedFile)
	if err != nil {
		return stats, fmt.Errorf("load seed: %w", err)
	}
	if len(seed.Entities) == 0 {
		return stats, ErrEmptySeed
	}

	violations, err := checkSuggestions(ctx, c, cfg, seed.Entities, stats)
	if err != nil {
		return stats, fmt.Errorf("suggestions: %w", err)
	}
	for _, v := range violations {
		log.Warn(ctx, "contract violation", logger.String("entity_id", v.EntityID), logger.String("detail", v.Detail))
	}

	if cfg.Locks {
		if err := checkLocks(ctx, c, seed.Backings, stats); err != nil {
			return stats, fmt.Errorf("locks: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	if stats.Violations > 0 {
		return stats, fmt.Errorf("%w: %d", ErrViolations, stats.Violations)
	}
	return stats, nil
}

func effectiveLimit(cfg Config) int {
	if cfg.Limit > cfg.MaxLimit {
		return cfg.MaxLimit
	}
	return cfg.Limit
}

func checkSuggestions(ctx context.Context, c *client, cfg Config, entities []model.Entity, stats *Stats) ([]Violation, error) {
	var (
		mu         sync.Mutex
		violations []Violation
	)
	limit := effectiveLimit(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, e := range entities {
		g.Go(func() error {
			res, err := c.suggestions(gctx, e.ID, cfg.Limit)
			if err != nil {
				return err
			}
			found := VerifySuggestions(e.ID, limit, res)

			mu.Lock()
			defer mu.Unlock()
			stats.EntitiesChecked++
			stats.SuggestionsSeen += len(res.Suggestions)
			if len(res.Suggestions) == 0 {
				stats.EmptyResults++
			}
			violations = append(violations, found...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Unknown entities degrade to an empty result rather than an error.
	unknown := "smoke-unknown-" + uuid.NewString()
	res, err := c.suggestions(ctx, unknown, cfg.Limit)
	if err != nil {
		return nil, err
	}
	violations = append(violations, VerifySuggestions(unknown, limit, res)...)
	if len(res.Suggestions) != 0 {
		violations = append(violations, Violation{EntityID: unknown, Detail: "unknown entity returned suggestions"})
	}

	stats.Violations += len(violations)
	return violations, nil
}

// checkLocks posts every PLEDGED backing twice with the same key. The first
// call must be accepted (or refused for state/backpressure), the second must
// not queue a second job.
func checkLocks(ctx context.Context, c *client, backings []model.Backing, stats *Stats) error {
	for _, b := range backings {
		if b.Status != model.BackingPledged {
			continue
		}
		key := "smoke-" + b.ID

		status, _, err := c.lock(ctx, b.ID, key)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusAccepted:
			stats.LocksQueued++
		case http.StatusConflict, http.StatusTooManyRequests:
			stats.LocksRejected++
			continue
		default:
			stats.LocksUnexpected++
			stats.Violations++
			continue
		}

		status, ack, err := c.lock(ctx, b.ID, key)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK && ack.Duplicate:
			stats.LocksDuplicate++
		case status == http.StatusConflict:
			// already LOCKED and the key was released
			stats.LocksRejected++
		default:
			stats.LocksUnexpected++
			stats.Violations++
		}
	}
	return nil
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("entitiesChecked", stats.EntitiesChecked),
		logger.Int("suggestionsSeen", stats.SuggestionsSeen),
		logger.Int("emptyResults", stats.EmptyResults),
		logger.Int("violations", stats.Violations),
		logger.Int("locksQueued", stats.LocksQueued),
		logger.Int("locksDuplicate", stats.LocksDuplicate),
		logger.Int("locksRejected", stats.LocksRejected),
		logger.Int("locksUnexpected", stats.LocksUnexpected),
		logger.String("duration", stats.Duration.String()))
}
