package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/backr/internal/adapters/repository"
	service "github.com/okian/backr/internal/app"
	"github.com/okian/backr/internal/domain/matching"
	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/internal/domain/types"
	"github.com/okian/backr/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func strPtr(s string) *string { return &s }

// seededStore holds two DeFi apps sharing a backer, a validator with only a
// website and an entity without any public profile.
func seededStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	s.PutEntity(model.Entity{ID: "a", Type: model.EntityTypeFeaturedApp, Name: "Lendly",
		Description: strPtr("We provide DeFi lending and staking services")})
	s.PutEntity(model.Entity{ID: "b", Type: model.EntityTypeFeaturedApp, Name: "Yieldr",
		Description: strPtr("DeFi staking and yield protocol")})
	s.PutEntity(model.Entity{ID: "c", Type: model.EntityTypeValidator, Name: "Node Co",
		Website: strPtr("https://node.example")})
	s.PutEntity(model.Entity{ID: "d", Type: model.EntityTypeFeaturedApp, Name: "Hidden"})

	s.PutBacking(model.Backing{ID: "b-a1", EntityID: "a", UserID: "u1", PartyID: "p1", Amount: "10", Status: model.BackingPledged})
	s.PutBacking(model.Backing{ID: "b-a2", EntityID: "a", UserID: "u2", PartyID: "p2", Amount: "20", Status: model.BackingPledged})
	s.PutBacking(model.Backing{ID: "b-b2", EntityID: "b", UserID: "u2", PartyID: "p2", Amount: "5", Status: model.BackingLocked})
	s.PutBacking(model.Backing{ID: "b-b3", EntityID: "b", UserID: "u3", PartyID: "p3", Amount: "5", Status: model.BackingPledged})
	s.PutBacking(model.Backing{ID: "b-gone", EntityID: "b", UserID: "u9", PartyID: "p9", Amount: "1", Status: model.BackingWithdrawn})
	return s
}

type failingStore struct {
	*repository.MemoryStore
	err error
}

func (f *failingStore) FindCandidates(context.Context, string) ([]model.Entity, error) {
	return nil, f.err
}

// panickingStore panics on the read named by where.
type panickingStore struct {
	*repository.MemoryStore
	where string
}

func (p *panickingStore) FindEntityByID(ctx context.Context, id string) (*model.Entity, error) {
	if p.where == "source" {
		panic("driver exploded")
	}
	return p.MemoryStore.FindEntityByID(ctx, id)
}

func (p *panickingStore) FindCandidates(ctx context.Context, excludeID string) ([]model.Entity, error) {
	if p.where == "candidates" {
		panic("driver exploded")
	}
	return p.MemoryStore.FindCandidates(ctx, excludeID)
}

// closeCountingStore records Close calls.
type closeCountingStore struct {
	*repository.MemoryStore
	closes int
}

func (c *closeCountingStore) Close() error {
	c.closes++
	return nil
}

type panickingScorer struct{}

func (panickingScorer) Strategy() string { return "panic" }
func (panickingScorer) Score(_, _ *matching.Profile) matching.Match {
	panic("scorer exploded")
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it has sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.NormalizeLimit(0), ShouldEqual, service.DefaultSuggestionLimit)
			So(svc.NormalizeLimit(99), ShouldEqual, service.MaxSuggestionLimit)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(64),
			service.WithDedupeSize(128),
			service.WithDedupeTTL(time.Minute),
			service.WithSuggestionLimits(3, 8),
			service.WithSuggestionTimeout(time.Second),
			service.WithLogger(logger.NewNop()),
		)

		Convey("Then the limits follow the options", func() {
			So(svc.NormalizeLimit(-1), ShouldEqual, 3)
			So(svc.NormalizeLimit(7), ShouldEqual, 7)
			So(svc.NormalizeLimit(9), ShouldEqual, 8)
		})
	})

	Convey("Given inconsistent suggestion limits", t, func() {
		svc := service.New(service.WithSuggestionLimits(9, 2))

		Convey("Then they are ignored", func() {
			So(svc.NormalizeLimit(0), ShouldEqual, service.DefaultSuggestionLimit)
		})
	})
}

func TestService_GetSuggestions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a seeded store", t, func() {
		svc := service.New(service.WithStore(seededStore()))

		Convey("When asking for suggestions for a featured app", func() {
			res := svc.GetSuggestions(ctx, "a", 0)

			Convey("Then candidates are ranked by score", func() {
				So(res.Strategy, ShouldEqual, types.StrategyRules)
				So(res.Suggestions, ShouldHaveLength, 2)

				first := res.Suggestions[0]
				So(first.Entity.ID, ShouldEqual, "b")
				So(first.Score, ShouldEqual, 37)
				So(first.MatchType, ShouldEqual, types.MatchTypeType)
				So(first.Reasons, ShouldResemble, []string{
					"Both are Featured Apps",
					"Similar business focus based on description",
					"1 shared backer",
				})

				second := res.Suggestions[1]
				So(second.Entity.ID, ShouldEqual, "c")
				So(second.Score, ShouldEqual, 15)
				So(second.MatchType, ShouldEqual, types.MatchTypeComplementary)
			})

			Convey("And the source and profile-less entities are never suggested", func() {
				for _, s := range res.Suggestions {
					So(s.Entity.ID, ShouldNotEqual, "a")
					So(s.Entity.ID, ShouldNotEqual, "d")
				}
			})
		})

		Convey("When the limit is smaller than the pool", func() {
			res := svc.GetSuggestions(ctx, "a", 1)

			Convey("Then only the best candidate is returned", func() {
				So(res.Suggestions, ShouldHaveLength, 1)
				So(res.Suggestions[0].Entity.ID, ShouldEqual, "b")
			})
		})

		Convey("When the source entity does not exist", func() {
			res := svc.GetSuggestions(ctx, "ghost", 5)

			Convey("Then the result is empty, not an error", func() {
				So(res.Suggestions, ShouldNotBeNil)
				So(res.Suggestions, ShouldBeEmpty)
				So(res.Strategy, ShouldEqual, types.StrategyRules)
			})
		})
	})

	Convey("Given a store that fails to load candidates", t, func() {
		store := &failingStore{MemoryStore: seededStore(), err: errors.New("connection reset")}
		svc := service.New(service.WithStore(store))

		Convey("Then the failure degrades to an empty result", func() {
			res := svc.GetSuggestions(ctx, "a", 5)
			So(res.Suggestions, ShouldBeEmpty)
			So(res.Strategy, ShouldEqual, types.StrategyRules)
		})
	})

	Convey("Given a store that panics while loading candidates", t, func() {
		svc := service.New(service.WithStore(&panickingStore{MemoryStore: seededStore(), where: "candidates"}))

		Convey("Then the panic degrades to an empty result", func() {
			var res types.SuggestionResult
			So(func() { res = svc.GetSuggestions(ctx, "a", 5) }, ShouldNotPanic)
			So(res.Suggestions, ShouldNotBeNil)
			So(res.Suggestions, ShouldBeEmpty)
			So(res.Strategy, ShouldEqual, types.StrategyRules)
		})
	})

	Convey("Given a store that panics while loading the source", t, func() {
		svc := service.New(service.WithStore(&panickingStore{MemoryStore: seededStore(), where: "source"}))

		Convey("Then the panic degrades to an empty result", func() {
			var res types.SuggestionResult
			So(func() { res = svc.GetSuggestions(ctx, "a", 5) }, ShouldNotPanic)
			So(res.Suggestions, ShouldBeEmpty)
			So(res.Strategy, ShouldEqual, types.StrategyRules)
		})
	})

	Convey("Given a scorer that panics", t, func() {
		svc := service.New(service.WithStore(seededStore()), service.WithScorer(panickingScorer{}))

		Convey("Then the panic is contained", func() {
			var res types.SuggestionResult
			So(func() { res = svc.GetSuggestions(ctx, "a", 5) }, ShouldNotPanic)
			So(res.Suggestions, ShouldBeEmpty)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithStore(seededStore()), service.WithWorkerCount(1))

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then basic stats are reported", func() {
				So(stats["started"], ShouldEqual, false)
				So(stats["totalEntities"], ShouldEqual, 4)
				So(stats["strategy"], ShouldEqual, types.StrategyRules)
			})
		})

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			Reset(func() { svc.Stop() })

			Convey("Then runtime stats appear", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats, ShouldContainKey, "locksProcessed")
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
				svc.Stop()
			})
		})
	})

	Convey("Given a store owned by the caller", t, func() {
		store := &closeCountingStore{MemoryStore: seededStore()}
		svc := service.New(service.WithStore(store), service.WithWorkerCount(1))
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("Then stopping the service leaves it open", func() {
			svc.Stop()
			So(store.closes, ShouldEqual, 0)
			So(svc.GetSuggestions(context.Background(), "a", 5).Suggestions, ShouldNotBeEmpty)
		})
	})
}
