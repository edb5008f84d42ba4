package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/okian/backr/internal/domain/model"
	"github.com/okian/backr/pkg/metrics"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var entityColumns = []string{
	"e.id", "e.type", "e.name", "e.description", "e.logo_url", "e.website", "e.party_id",
	"(SELECT COUNT(*) FROM campaigns c WHERE c.entity_id = e.id) AS campaign_count",
}

var backingColumns = []string{
	"id", "entity_id", "campaign_id", "user_id", "party_id", "amount", "status", "ledger_ref", "created_at", "updated_at",
}

// SQLStore implements Store over PostgreSQL or SQLite.
type SQLStore struct {
	db     *sqlx.DB
	flavor sqlbuilder.Flavor
}

// NewSQLStore wraps an open connection. flavor selects placeholder syntax.
func NewSQLStore(db *sqlx.DB, flavor sqlbuilder.Flavor) *SQLStore {
	return &SQLStore{db: db, flavor: flavor}
}

// OpenSQLStore connects using driver (postgres or sqlite) and applies the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var flavor sqlbuilder.Flavor
	switch driver {
	case DriverPostgres:
		flavor = sqlbuilder.PostgreSQL
	case DriverSQLite:
		flavor = sqlbuilder.SQLite
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite only supports one concurrent writer.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store := NewSQLStore(db, flavor)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the tables and indexes when they do not exist yet.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	schema := postgresSchema
	if s.flavor == sqlbuilder.SQLite {
		schema = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// FindEntityByID implements Store.
func (s *SQLStore) FindEntityByID(ctx context.Context, id string) (*model.Entity, error) {
	start := time.Now()
	defer observe("find_entity", start)

	sb := s.flavor.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities e")
	sb.Where(sb.Equal("e.id", id))

	query, args := sb.Build()
	var e model.Entity
	if err := s.db.GetContext(ctx, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
		}
		metrics.RecordErrorByComponent("repository", "find_entity")
		return nil, fmt.Errorf("find entity %s: %w", id, err)
	}

	backings, err := s.activeBackings(ctx, []string{e.ID})
	if err != nil {
		return nil, err
	}
	e.Backings = backings[e.ID]
	return &e, nil
}

// FindCandidates implements Store.
func (s *SQLStore) FindCandidates(ctx context.Context, excludeID string) ([]model.Entity, error) {
	start := time.Now()
	defer observe("find_candidates", start)

	campaigns := s.flavor.NewSelectBuilder()
	campaigns.Select("1").From("campaigns c").Where("c.entity_id = e.id")

	sb := s.flavor.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities e")
	sb.Where(
		sb.NotEqual("e.id", excludeID),
		sb.Or(
			sb.IsNotNull("e.description"),
			sb.IsNotNull("e.website"),
			sb.Exists(campaigns),
		),
	)
	sb.OrderBy("e.id")

	query, args := sb.Build()
	var entities []model.Entity
	if err := s.db.SelectContext(ctx, &entities, query, args...); err != nil {
		metrics.RecordErrorByComponent("repository", "find_candidates")
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	if len(entities) == 0 {
		return entities, nil
	}

	ids := make([]string, len(entities))
	for i := range entities {
		ids[i] = entities[i].ID
	}
	backings, err := s.activeBackings(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entities {
		entities[i].Backings = backings[entities[i].ID]
	}
	return entities, nil
}

// activeBackings loads PLEDGED/LOCKED backings grouped by entity id.
func (s *SQLStore) activeBackings(ctx context.Context, entityIDs []string) (map[string][]model.Backing, error) {
	statuses := model.ActiveBackingStatuses()
	statusArgs := make([]any, len(statuses))
	for i, st := range statuses {
		statusArgs[i] = string(st)
	}
	idArgs := make([]any, len(entityIDs))
	for i, id := range entityIDs {
		idArgs[i] = id
	}

	sb := s.flavor.NewSelectBuilder()
	sb.Select(backingColumns...)
	sb.From("backings")
	sb.Where(
		sb.In("entity_id", idArgs...),
		sb.In("status", statusArgs...),
	)
	sb.OrderBy("id")

	query, args := sb.Build()
	var rows []model.Backing
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		metrics.RecordErrorByComponent("repository", "active_backings")
		return nil, fmt.Errorf("load backings: %w", err)
	}

	out := make(map[string][]model.Backing, len(entityIDs))
	for _, b := range rows {
		out[b.EntityID] = append(out[b.EntityID], b)
	}
	return out, nil
}

// GetBacking implements Store.
func (s *SQLStore) GetBacking(ctx context.Context, id string) (*model.Backing, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(backingColumns...)
	sb.From("backings")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var b model.Backing
	if err := s.db.GetContext(ctx, &b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("backing %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get backing %s: %w", id, err)
	}
	return &b, nil
}

// UpdateBackingStatus implements Store.
func (s *SQLStore) UpdateBackingStatus(ctx context.Context, id string, from, to model.BackingStatus, ledgerRef string) error {
	start := time.Now()
	defer observe("update_backing", start)

	ub := s.flavor.NewUpdateBuilder()
	ub.Update("backings")
	assignments := []string{
		ub.Assign("status", string(to)),
		ub.Assign("updated_at", time.Now().UTC()),
	}
	if ledgerRef != "" {
		assignments = append(assignments, ub.Assign("ledger_ref", ledgerRef))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id), ub.Equal("status", string(from)))

	query, args := ub.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "update_backing")
		return fmt.Errorf("update backing %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update backing %s: %w", id, err)
	}
	if n == 0 {
		// tell a missing row from one that moved on
		b, err := s.GetBacking(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("backing %s is %s, want %s: %w", id, b.Status, from, ErrStatusConflict)
	}
	return nil
}

// Count implements Store. Errors count as zero.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM entities"); err != nil {
		metrics.RecordErrorByComponent("repository", "count")
		return 0
	}
	return n
}
