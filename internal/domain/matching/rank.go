package matching

import (
	"cmp"
	"slices"

	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/internal/domain/types"
)

// Rank scores every candidate against src, drops non-positive scores, sorts
// by score descending (ties by candidate ID ascending) and keeps at most
// limit suggestions. A limit below 1 yields no suggestions.
func Rank(scorer Scorer, src *Profile, candidates []model.Entity, limit int) []types.Suggestion {
	out := make([]types.Suggestion, 0, len(candidates))
	if limit < 1 {
		return out
	}

	for i := range candidates {
		cand := &candidates[i]
		if cand.ID == src.Entity.ID {
			continue
		}
		m := scorer.Score(src, NewProfile(cand))
		if m.Score <= 0 {
			continue
		}
		out = append(out, types.Suggestion{
			Entity:    types.NewPublicEntity(cand),
			Score:     m.Score,
			Reasons:   m.Reasons,
			MatchType: m.MatchType,
		})
	}

	slices.SortStableFunc(out, func(a, b types.Suggestion) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Entity.ID, b.Entity.ID)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
