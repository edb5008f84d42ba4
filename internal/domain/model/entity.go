// Package model contains domain models passed between layers.
package model

import "time"

// EntityType is the closed set of registered participant kinds.
type EntityType string

// Known entity types.
const (
	EntityTypeFeaturedApp EntityType = "FEATURED_APP"
	EntityTypeValidator   EntityType = "VALIDATOR"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	return t == EntityTypeFeaturedApp || t == EntityTypeValidator
}

// BackingStatus tracks a pledge through its ledger lifecycle.
type BackingStatus string

// Backing statuses. Only PLEDGED and LOCKED count as active.
const (
	BackingPledged   BackingStatus = "PLEDGED"
	BackingLocked    BackingStatus = "LOCKED"
	BackingWithdrawn BackingStatus = "WITHDRAWN"
	BackingCancelled BackingStatus = "CANCELLED"
)

// Active reports whether the status counts toward shared-backer overlap.
func (s BackingStatus) Active() bool {
	return s == BackingPledged || s == BackingLocked
}

// ActiveBackingStatuses lists the statuses that make a backing active.
func ActiveBackingStatuses() []BackingStatus {
	return []BackingStatus{BackingPledged, BackingLocked}
}

// Backing is a user's pledge toward an entity (optionally a specific campaign).
type Backing struct {
	ID         string        `db:"id" yaml:"id"`
	EntityID   string        `db:"entity_id" yaml:"entity_id"`
	CampaignID *string       `db:"campaign_id" yaml:"campaign_id"`
	UserID     string        `db:"user_id" yaml:"user_id"`
	PartyID    string        `db:"party_id" yaml:"party_id"`
	Amount     string        `db:"amount" yaml:"amount"` // decimal string, as the ledger expects
	Status     BackingStatus `db:"status" yaml:"status"`
	LedgerRef  *string       `db:"ledger_ref" yaml:"ledger_ref"`
	CreatedAt  time.Time     `db:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" yaml:"updated_at"`
}

// Campaign is a funding drive run by an entity.
type Campaign struct {
	ID       string `db:"id" yaml:"id"`
	EntityID string `db:"entity_id" yaml:"entity_id"`
	Title    string `db:"title" yaml:"title"`
}

// Entity is a registered Featured App or Validator.
type Entity struct {
	ID          string     `db:"id" yaml:"id"`
	Type        EntityType `db:"type" yaml:"type"`
	Name        string     `db:"name" yaml:"name"`
	Description *string    `db:"description" yaml:"description"`
	LogoURL     *string    `db:"logo_url" yaml:"logo_url"`
	Website     *string    `db:"website" yaml:"website"`
	PartyID     *string    `db:"party_id" yaml:"party_id"`

	// CampaignCount is the number of campaigns the entity has run.
	CampaignCount int `db:"campaign_count" yaml:"-"`

	// Backings holds the entity's active backings only.
	Backings []Backing `db:"-" yaml:"-"`
}

// DescriptionText returns the description or "" when absent.
func (e *Entity) DescriptionText() string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}

// HasPublicProfile reports whether the entity discloses enough to be a
// suggestion candidate: a description, a website or at least one campaign.
func (e *Entity) HasPublicProfile() bool {
	return e.Description != nil || e.Website != nil || e.CampaignCount > 0
}

// ActiveBackerIDs returns the distinct user IDs behind active backings.
func (e *Entity) ActiveBackerIDs() []string {
	seen := make(map[string]struct{}, len(e.Backings))
	ids := make([]string, 0, len(e.Backings))
	for _, b := range e.Backings {
		if !b.Status.Active() {
			continue
		}
		if _, ok := seen[b.UserID]; ok {
			continue
		}
		seen[b.UserID] = struct{}{}
		ids = append(ids, b.UserID)
	}
	return ids
}
