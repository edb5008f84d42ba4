// Package types contains common types used across the application
package types

import "github.com/okian/backr/internal/domain/model"

// MatchType classifies the dominant signal behind a suggestion.
type MatchType string

// Match types, in rule evaluation order.
const (
	MatchTypeType          MatchType = "type"
	MatchTypeComplementary MatchType = "complementary"
	MatchTypeDescription   MatchType = "description"
	MatchTypeBackers       MatchType = "backers"
)

// StrategyRules tags results produced by the rule-based scorer.
const StrategyRules = "rules"

// PublicEntity is the public projection of an entity shown with a suggestion.
type PublicEntity struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        model.EntityType `json:"type"`
	Description *string          `json:"description"`
	LogoURL     *string          `json:"logoUrl"`
	Website     *string          `json:"website"`
	PartyID     *string          `json:"partyId"`
}

// NewPublicEntity projects e onto its public fields.
func NewPublicEntity(e *model.Entity) PublicEntity {
	return PublicEntity{
		ID:          e.ID,
		Name:        e.Name,
		Type:        e.Type,
		Description: e.Description,
		LogoURL:     e.LogoURL,
		Website:     e.Website,
		PartyID:     e.PartyID,
	}
}

// Suggestion is a ranked collaboration candidate.
type Suggestion struct {
	Entity    PublicEntity `json:"entity"`
	Score     int          `json:"score"`
	Reasons   []string     `json:"reasons"`
	MatchType MatchType    `json:"matchType"`
}

// SuggestionResult is the response of a suggestions query.
type SuggestionResult struct {
	Suggestions []Suggestion `json:"suggestions"`
	Strategy    string       `json:"strategy"`
}

// EmptySuggestions is the degraded result returned on any failure.
func EmptySuggestions() SuggestionResult {
	return SuggestionResult{Suggestions: []Suggestion{}, Strategy: StrategyRules}
}

// LockAck acknowledges a pledge-lock request.
type LockAck struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	JobID     string `json:"jobId,omitempty"`
}

// Balance mirrors a party's ledger balance.
type Balance struct {
	PartyID   string `json:"partyId"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}
