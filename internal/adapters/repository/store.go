// Package repository defines the entity store contract and its implementations.
package repository

import (
	"context"

	"github.com/okian/backr/internal/domain/model"
)

// Store provides the reads the suggestion engine needs plus the backing
// updates used by the lock pipeline.
type Store interface {
	// FindEntityByID returns the entity with its active backings.
	// Returns ErrNotFound if the entity is unknown.
	FindEntityByID(ctx context.Context, id string) (*model.Entity, error)

	// FindCandidates returns every entity other than excludeID that has a
	// description, a website or at least one campaign, each with its active
	// backings. Results are ordered by id.
	FindCandidates(ctx context.Context, excludeID string) ([]model.Entity, error)

	// GetBacking returns a backing regardless of its status.
	// Returns ErrNotFound if the backing is unknown.
	GetBacking(ctx context.Context, id string) (*model.Backing, error)

	// UpdateBackingStatus moves a backing from one status to another and
	// records the ledger reference of the operation that caused it.
	// Returns ErrStatusConflict if the backing is no longer in from.
	UpdateBackingStatus(ctx context.Context, id string, from, to model.BackingStatus, ledgerRef string) error

	// Count returns the number of registered entities.
	Count(ctx context.Context) int
}
