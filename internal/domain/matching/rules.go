// Package matching scores collaboration candidates against a source entity.
package matching

import (
	"fmt"

	"github.com/okian/backr/internal/domain/keywords"
	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/internal/domain/types"
)

// Rule weights and thresholds.
const (
	typeMatchPoints     = 20
	complementaryPoints = 15

	keywordPointsPerMatch  = 5
	keywordMaxPoints       = 30
	keywordDominantPoints  = 15
	backerPointsPerShared  = 7
	backerMaxPoints        = 35
	backerDominantOverlap  = 3
	reasonKeywordOverlap   = "Similar business focus based on description"
	reasonComplementaryAlt = "Complementary roles on the network"
)

// Profile is the precomputed view of an entity the rules compare.
type Profile struct {
	Entity   *model.Entity
	Keywords keywords.Set
	Backers  map[string]struct{}
}

// NewProfile extracts keywords and active backers from e.
func NewProfile(e *model.Entity) *Profile {
	ids := e.ActiveBackerIDs()
	backers := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		backers[id] = struct{}{}
	}
	return &Profile{
		Entity:   e,
		Keywords: keywords.Extract(e.DescriptionText()),
		Backers:  backers,
	}
}

// Outcome is what a single rule contributes. A zero Outcome means the rule
// did not fire.
type Outcome struct {
	Points int
	Reason string
	Tag    types.MatchType
	// Dominant marks an outcome allowed to set the suggestion's match type.
	Dominant bool
}

// Rule evaluates one signal between a source and a candidate.
type Rule func(src, cand *Profile) Outcome

// DefaultRules is the fixed evaluation order. Later dominant outcomes
// override earlier ones when the match type is chosen.
var DefaultRules = []Rule{
	TypeMatchRule,
	ComplementaryRule,
	KeywordOverlapRule,
	SharedBackersRule,
}

// TypeMatchRule fires when both entities have the same type.
func TypeMatchRule(src, cand *Profile) Outcome {
	if src.Entity.Type != cand.Entity.Type {
		return Outcome{}
	}
	return Outcome{
		Points:   typeMatchPoints,
		Reason:   sameTypeReason(src.Entity.Type),
		Tag:      types.MatchTypeType,
		Dominant: true,
	}
}

// ComplementaryRule fires when the entities have different types.
func ComplementaryRule(src, cand *Profile) Outcome {
	if src.Entity.Type == cand.Entity.Type {
		return Outcome{}
	}
	return Outcome{
		Points:   complementaryPoints,
		Reason:   complementaryReason(src.Entity.Type, cand.Entity.Name),
		Tag:      types.MatchTypeComplementary,
		Dominant: true,
	}
}

// KeywordOverlapRule rewards shared description terms.
func KeywordOverlapRule(src, cand *Profile) Outcome {
	points := KeywordOverlapScore(src.Keywords.Overlap(cand.Keywords))
	if points <= 0 {
		return Outcome{}
	}
	return Outcome{
		Points:   points,
		Reason:   reasonKeywordOverlap,
		Tag:      types.MatchTypeDescription,
		Dominant: points >= keywordDominantPoints,
	}
}

// SharedBackersRule rewards users actively backing both entities.
func SharedBackersRule(src, cand *Profile) Outcome {
	n := SharedBackerCount(src, cand)
	if n == 0 {
		return Outcome{}
	}
	return Outcome{
		Points:   SharedBackerScore(n),
		Reason:   sharedBackerReason(n),
		Tag:      types.MatchTypeBackers,
		Dominant: n >= backerDominantOverlap,
	}
}

// KeywordOverlapScore is min(5 × matches, 30).
func KeywordOverlapScore(matches int) int {
	if matches <= 0 {
		return 0
	}
	return min(matches*keywordPointsPerMatch, keywordMaxPoints)
}

// SharedBackerScore is min(7 × shared, 35).
func SharedBackerScore(shared int) int {
	if shared <= 0 {
		return 0
	}
	return min(shared*backerPointsPerShared, backerMaxPoints)
}

// SharedBackerCount returns the size of the active-backer intersection.
func SharedBackerCount(src, cand *Profile) int {
	small, large := src.Backers, cand.Backers
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for id := range small {
		if _, ok := large[id]; ok {
			n++
		}
	}
	return n
}

func sameTypeReason(t model.EntityType) string {
	switch t {
	case model.EntityTypeFeaturedApp:
		return "Both are Featured Apps"
	case model.EntityTypeValidator:
		return "Both are Validators"
	default:
		return fmt.Sprintf("Both are %s", t)
	}
}

func complementaryReason(srcType model.EntityType, candName string) string {
	switch srcType {
	case model.EntityTypeFeaturedApp:
		return fmt.Sprintf("Could use %s's validation services", candName)
	case model.EntityTypeValidator:
		return fmt.Sprintf("Could integrate with %s's application", candName)
	default:
		return reasonComplementaryAlt
	}
}

func sharedBackerReason(n int) string {
	if n == 1 {
		return "1 shared backer"
	}
	return fmt.Sprintf("%d shared backers", n)
}
