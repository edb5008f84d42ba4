package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/pkg/metrics"
)

// MemoryStore is a mutex-guarded in-memory Store, used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[string]model.Entity
	campaigns map[string]int // entity id -> campaign count
	backings  map[string]model.Backing
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:  make(map[string]model.Entity),
		campaigns: make(map[string]int),
		backings:  make(map[string]model.Backing),
	}
}

// PutEntity inserts or replaces an entity. Backings on e are ignored; use PutBacking.
func (s *MemoryStore) PutEntity(e model.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Backings = nil
	e.CampaignCount = 0
	s.entities[e.ID] = e
}

// PutCampaign registers a campaign for its entity.
func (s *MemoryStore) PutCampaign(c model.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.EntityID]++
}

// PutBacking inserts or replaces a backing.
func (s *MemoryStore) PutBacking(b model.Backing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	s.backings[b.ID] = b
}

// FindEntityByID implements Store.
func (s *MemoryStore) FindEntityByID(_ context.Context, id string) (*model.Entity, error) {
	start := time.Now()
	defer observe("find_entity", start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	full := s.hydrateLocked(e)
	return &full, nil
}

// FindCandidates implements Store.
func (s *MemoryStore) FindCandidates(_ context.Context, excludeID string) ([]model.Entity, error) {
	start := time.Now()
	defer observe("find_candidates", start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Entity, 0, len(s.entities))
	for id, e := range s.entities {
		if id == excludeID {
			continue
		}
		full := s.hydrateLocked(e)
		if !full.HasPublicProfile() {
			continue
		}
		out = append(out, full)
	}
	slices.SortFunc(out, func(a, b model.Entity) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetBacking implements Store.
func (s *MemoryStore) GetBacking(_ context.Context, id string) (*model.Backing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.backings[id]
	if !ok {
		return nil, fmt.Errorf("backing %s: %w", id, ErrNotFound)
	}
	return &b, nil
}

// UpdateBackingStatus implements Store.
func (s *MemoryStore) UpdateBackingStatus(_ context.Context, id string, from, to model.BackingStatus, ledgerRef string) error {
	start := time.Now()
	defer observe("update_backing", start)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.backings[id]
	if !ok {
		return fmt.Errorf("backing %s: %w", id, ErrNotFound)
	}
	if b.Status != from {
		return fmt.Errorf("backing %s is %s, want %s: %w", id, b.Status, from, ErrStatusConflict)
	}
	b.Status = to
	if ledgerRef != "" {
		ref := ledgerRef
		b.LedgerRef = &ref
	}
	b.UpdatedAt = time.Now().UTC()
	s.backings[id] = b
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// hydrateLocked attaches the campaign count and active backings to e.
// Caller must hold s.mu.
func (s *MemoryStore) hydrateLocked(e model.Entity) model.Entity {
	e.CampaignCount = s.campaigns[e.ID]
	e.Backings = nil
	for _, b := range s.backings {
		if b.EntityID == e.ID && b.Status.Active() {
			e.Backings = append(e.Backings, b)
		}
	}
	slices.SortFunc(e.Backings, func(a, b model.Backing) int {
		return strings.Compare(a.ID, b.ID)
	})
	return e
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
