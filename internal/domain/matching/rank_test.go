package matching_test

import (
	"testing"

	"github.com/okian/backr/internal/domain/matching"
	"github.com/okian/backr/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fixedScorer returns a preset score per candidate id.
type fixedScorer struct {
	scores map[string]int
}

func (f *fixedScorer) Strategy() string { return "fixed" }

func (f *fixedScorer) Score(_, cand *matching.Profile) matching.Match {
	return matching.Match{Score: f.scores[cand.Entity.ID], Reasons: []string{}}
}

func TestRank(t *testing.T) {
	Convey("Given a source and a pool of candidates", t, func() {
		src := matching.NewProfile(entity("src", model.EntityTypeFeaturedApp, ""))
		pool := []model.Entity{
			*entity("c", model.EntityTypeFeaturedApp, ""),
			*entity("a", model.EntityTypeFeaturedApp, ""),
			*entity("d", model.EntityTypeFeaturedApp, ""),
			*entity("b", model.EntityTypeFeaturedApp, ""),
			*entity("z", model.EntityTypeFeaturedApp, ""),
			*entity("src", model.EntityTypeFeaturedApp, ""),
		}
		scorer := &fixedScorer{scores: map[string]int{
			"a": 30, "b": 50, "c": 30, "d": 0, "z": -5, "src": 99,
		}}

		Convey("When ranking with a generous limit", func() {
			got := matching.Rank(scorer, src, pool, 10)

			Convey("Then non-positive scores and the source itself are dropped", func() {
				So(got, ShouldHaveLength, 3)
				for _, s := range got {
					So(s.Score, ShouldBeGreaterThan, 0)
					So(s.Entity.ID, ShouldNotEqual, "src")
				}
			})

			Convey("And results are sorted by score with ties broken by id", func() {
				So(got[0].Entity.ID, ShouldEqual, "b")
				So(got[1].Entity.ID, ShouldEqual, "a")
				So(got[2].Entity.ID, ShouldEqual, "c")
			})
		})

		Convey("When ranking with a small limit", func() {
			got := matching.Rank(scorer, src, pool, 2)

			Convey("Then the list is truncated to the limit", func() {
				So(got, ShouldHaveLength, 2)
				So(got[0].Score, ShouldBeGreaterThanOrEqualTo, got[1].Score)
			})
		})

		Convey("When the limit is zero", func() {
			Convey("Then nothing is returned", func() {
				So(matching.Rank(scorer, src, pool, 0), ShouldBeEmpty)
			})
		})

		Convey("When the pool is empty", func() {
			Convey("Then an empty, non-nil list is returned", func() {
				got := matching.Rank(scorer, src, nil, 5)
				So(got, ShouldNotBeNil)
				So(got, ShouldBeEmpty)
			})
		})
	})
}

func TestRank_WithRuleScorer(t *testing.T) {
	Convey("Given real rules and a mixed pool", t, func() {
		src := matching.NewProfile(entity("src", model.EntityTypeValidator,
			"Validator infrastructure with monitoring and analytics", "u1", "u2", "u3"))
		pool := []model.Entity{
			*entity("app", model.EntityTypeFeaturedApp, "Analytics dashboards", "u1"),
			*entity("val", model.EntityTypeValidator, "Node monitoring and analytics infrastructure", "u1", "u2", "u3"),
			*entity("other", model.EntityTypeFeaturedApp, ""),
		}

		Convey("When ranking", func() {
			got := matching.Rank(matching.NewRuleScorer(), src, pool, 10)

			Convey("Then every candidate scores positively and order is descending", func() {
				So(got, ShouldHaveLength, 3)
				for i := 1; i < len(got); i++ {
					So(got[i-1].Score, ShouldBeGreaterThanOrEqualTo, got[i].Score)
				}
				So(got[0].Entity.ID, ShouldEqual, "val")
				So(got[len(got)-1].Entity.ID, ShouldEqual, "other")
			})
		})
	})
}
