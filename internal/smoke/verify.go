package smoke

import (
	"fmt"

	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/internal/domain/types"
)

// Violation describes one broken expectation in a suggestions response.
type Violation struct {
	EntityID string
	Detail   string
}

func (v Violation) String() string {
	return v.EntityID + ": " + v.Detail
}

var knownMatchTypes = map[types.MatchType]struct{}{
	types.MatchTypeType:          {},
	types.MatchTypeComplementary: {},
	types.MatchTypeDescription:   {},
	types.MatchTypeBackers:       {},
}

// VerifySuggestions checks a response for sourceID requested with limit
// (already capped to the server maximum).
func VerifySuggestions(sourceID string, limit int, res types.SuggestionResult) []Violation {
	var out []Violation
	add := func(format string, args ...any) {
		out = append(out, Violation{EntityID: sourceID, Detail: fmt.Sprintf(format, args...)})
	}

	if res.Strategy != types.StrategyRules {
		add("strategy %q, want %q", res.Strategy, types.StrategyRules)
	}
	if res.Suggestions == nil {
		add("suggestions must be an empty array, got null")
	}
	if len(res.Suggestions) > limit {
		add("%d suggestions exceed limit %d", len(res.Suggestions), limit)
	}

	seen := make(map[string]struct{}, len(res.Suggestions))
	for i, s := range res.Suggestions {
		id := s.Entity.ID
		if id == sourceID {
			add("source suggested to itself at position %d", i)
		}
		if _, dup := seen[id]; dup {
			add("candidate %s suggested twice", id)
		}
		seen[id] = struct{}{}

		if s.Score <= 0 {
			add("candidate %s has non-positive score %d", id, s.Score)
		}
		if len(s.Reasons) == 0 {
			add("candidate %s has no reasons", id)
		}
		if _, ok := knownMatchTypes[s.MatchType]; !ok {
			add("candidate %s has unknown match type %q", id, s.MatchType)
		}
		if s.Entity.Type != model.EntityTypeFeaturedApp && s.Entity.Type != model.EntityTypeValidator {
			add("candidate %s has unknown type %q", id, s.Entity.Type)
		}

		if i == 0 {
			continue
		}
		prev := res.Suggestions[i-1]
		switch {
		case prev.Score < s.Score:
			add("position %d (%d) outranks position %d (%d)", i, s.Score, i-1, prev.Score)
		case prev.Score == s.Score && prev.Entity.ID > id:
			add("tie at score %d not ordered by id: %s before %s", s.Score, prev.Entity.ID, id)
		}
	}
	return out
}
