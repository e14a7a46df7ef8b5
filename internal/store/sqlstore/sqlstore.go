// Package sqlstore implements the catalog Store on database/sql, backed by
// Postgres (pgx stdlib driver) in production and SQLite (modernc, cgo-free)
// for embedded setups. The two backends share all query construction; only
// placeholder style and DDL differ.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/store"
	"github.com/portalstack/portal-server/internal/utils"
)

// Dialect selects placeholder style and DDL for the backing engine.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

const (
	pgUniqueViolation         = "23505"
	sqliteConstraintUnique    = 2067
	sqliteConstraintPrimaryKy = 1555
)

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Store = (*Store)(nil)

// OpenPostgres opens a Postgres-backed store and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return open(ctx, db, Postgres)
}

// OpenSQLite opens a SQLite-backed store (":memory:" works for tests) and
// applies the schema.
func OpenSQLite(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// table-lock errors under concurrent access.
	db.SetMaxOpenConns(1)
	return open(ctx, db, SQLite)
}

func open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{db: db, dialect: d}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS services (
  id UUID PRIMARY KEY,
  name VARCHAR(50) NOT NULL,
  description VARCHAR(255) NOT NULL DEFAULT '',
  base_url VARCHAR(2048) NOT NULL DEFAULT '',
  is_visible BOOLEAN NOT NULL DEFAULT TRUE,
  is_visible_by_role BOOLEAN NOT NULL DEFAULT FALSE,
  display_name VARCHAR(50) NOT NULL DEFAULT '',
  icon_url VARCHAR(2048) NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  deleted_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_services_name_active
  ON services (name) WHERE deleted_at IS NULL;
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS services (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  base_url TEXT NOT NULL DEFAULT '',
  is_visible BOOLEAN NOT NULL DEFAULT TRUE,
  is_visible_by_role BOOLEAN NOT NULL DEFAULT FALSE,
  display_name TEXT NOT NULL DEFAULT '',
  icon_url TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  deleted_at TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_services_name_active
  ON services (name) WHERE deleted_at IS NULL;
`

// init applies the DDL. The uniqueness of name among non-deleted rows is a
// hard requirement on the storage engine: the manager's check-then-insert
// is only a fast path, this index is the real guarantee.
func (s *Store) init(ctx context.Context) error {
	ddl := schemaPostgres
	if s.dialect == SQLite {
		ddl = schemaSQLite
	}
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// qb accumulates SQL arguments and renders dialect-appropriate
// placeholders.
type qb struct {
	dialect Dialect
	args    []any
}

func (b *qb) bind(v any) string {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		return fmt.Sprintf("$%d", len(b.args))
	}
	return "?"
}

const selectCols = `id, name, description, base_url, is_visible, is_visible_by_role, display_name, icon_url, created_at, updated_at, deleted_at`

func scanService(row interface{ Scan(...any) error }) (*domain.Service, error) {
	var svc domain.Service
	var deletedAt sql.NullTime
	err := row.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.BaseURL,
		&svc.IsVisible, &svc.IsVisibleByRole, &svc.DisplayName, &svc.IconURL,
		&svc.CreatedAt, &svc.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		svc.DeletedAt = &t
	}
	return &svc, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Service, error) {
	b := &qb{dialect: s.dialect}
	q := fmt.Sprintf(`SELECT %s FROM services WHERE id = %s AND deleted_at IS NULL`,
		selectCols, b.bind(id))
	svc, err := scanService(s.db.QueryRowContext(ctx, q, b.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find service by id: %w", err)
	}
	return svc, nil
}

func (s *Store) FindByName(ctx context.Context, name string) (*domain.Service, error) {
	b := &qb{dialect: s.dialect}
	q := fmt.Sprintf(`SELECT %s FROM services WHERE name = %s AND deleted_at IS NULL`,
		selectCols, b.bind(name))
	svc, err := scanService(s.db.QueryRowContext(ctx, q, b.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find service by name: %w", err)
	}
	return svc, nil
}

func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]*domain.Service, error) {
	if len(ids) == 0 {
		return []*domain.Service{}, nil
	}
	b := &qb{dialect: s.dialect}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = b.bind(id)
	}
	q := fmt.Sprintf(`SELECT %s FROM services WHERE id IN (%s) AND deleted_at IS NULL`,
		selectCols, strings.Join(placeholders, ", "))
	return s.queryServices(ctx, q, b.args)
}

func (s *Store) FindMatchingAll(ctx context.Context, f domain.Filter) ([]*domain.Service, error) {
	return s.findMatching(ctx, f, " AND ")
}

func (s *Store) FindMatchingAny(ctx context.Context, f domain.Filter) ([]*domain.Service, error) {
	return s.findMatching(ctx, f, " OR ")
}

func (s *Store) findMatching(ctx context.Context, f domain.Filter, join string) ([]*domain.Service, error) {
	b := &qb{dialect: s.dialect}
	q := fmt.Sprintf(`SELECT %s FROM services WHERE %s`, selectCols, filterWhere(b, f, join))
	return s.queryServices(ctx, q, b.args)
}

func filterWhere(b *qb, f domain.Filter, join string) string {
	var conds []string
	if f.Name != "" {
		conds = append(conds, "name = "+b.bind(f.Name))
	}
	if f.Description != "" {
		conds = append(conds, "description = "+b.bind(f.Description))
	}
	if f.BaseURL != "" {
		conds = append(conds, "base_url = "+b.bind(f.BaseURL))
	}
	if f.IsVisible != nil {
		conds = append(conds, "is_visible = "+b.bind(*f.IsVisible))
	}
	if f.IsVisibleByRole != nil {
		conds = append(conds, "is_visible_by_role = "+b.bind(*f.IsVisibleByRole))
	}
	if f.DisplayName != "" {
		conds = append(conds, "display_name = "+b.bind(f.DisplayName))
	}
	if f.IconURL != "" {
		conds = append(conds, "icon_url = "+b.bind(f.IconURL))
	}

	where := "deleted_at IS NULL"
	if len(conds) > 0 {
		where += " AND (" + strings.Join(conds, join) + ")"
	}
	return where
}

func (s *Store) queryServices(ctx context.Context, q string, args []any) ([]*domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer utils.Close(rows)

	out := make([]*domain.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return out, nil
}

func (s *Store) Search(ctx context.Context, q store.SearchQuery) (*store.Page, error) {
	q.Normalize()

	b := &qb{dialect: s.dialect}
	where := []string{"deleted_at IS NULL"}
	if q.Name != "" {
		where = append(where, fmt.Sprintf("name LIKE '%%' || %s || '%%'", b.bind(q.Name)))
	}
	if q.Description != "" {
		where = append(where, fmt.Sprintf("description LIKE '%%' || %s || '%%'", b.bind(q.Description)))
	}
	if q.IsVisible != nil {
		where = append(where, "is_visible = "+b.bind(*q.IsVisible))
	}
	if q.IsVisibleByRole != nil {
		where = append(where, "is_visible_by_role = "+b.bind(*q.IsVisibleByRole))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQ := `SELECT COUNT(*) FROM services WHERE ` + whereClause
	if err := s.db.QueryRowContext(ctx, countQ, b.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count services: %w", err)
	}

	// SortBy is whitelisted by Normalize, safe to interpolate.
	pageQ := fmt.Sprintf(`SELECT %s FROM services WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s`,
		selectCols, whereClause, q.SortBy, q.SortOrder,
		b.bind(q.Limit), b.bind((q.Page-1)*q.Limit))

	services, err := s.queryServices(ctx, pageQ, b.args)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SearchResult, 0, len(services))
	for _, svc := range services {
		items = append(items, domain.SearchResult{Service: *svc})
	}
	return &store.Page{
		Items:    items,
		PageInfo: store.NewPageInfo(q.Page, q.Limit, total),
	}, nil
}

func (s *Store) Save(ctx context.Context, svc *domain.Service) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	svc.UpdatedAt = now

	b := &qb{dialect: s.dialect}
	q := fmt.Sprintf(`INSERT INTO services (%s) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
ON CONFLICT (id) DO UPDATE SET
  name = excluded.name,
  description = excluded.description,
  base_url = excluded.base_url,
  is_visible = excluded.is_visible,
  is_visible_by_role = excluded.is_visible_by_role,
  display_name = excluded.display_name,
  icon_url = excluded.icon_url,
  updated_at = excluded.updated_at,
  deleted_at = excluded.deleted_at`,
		selectCols,
		b.bind(svc.ID), b.bind(svc.Name), b.bind(svc.Description), b.bind(svc.BaseURL),
		b.bind(svc.IsVisible), b.bind(svc.IsVisibleByRole), b.bind(svc.DisplayName),
		b.bind(svc.IconURL), b.bind(svc.CreatedAt), b.bind(svc.UpdatedAt), b.bind(nullTime(svc.DeletedAt)))

	if _, err := s.db.ExecContext(ctx, q, b.args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists()
		}
		return fmt.Errorf("save service: %w", err)
	}
	return nil
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	b := &qb{dialect: s.dialect}
	q := fmt.Sprintf(`UPDATE services SET deleted_at = %s, updated_at = %s WHERE id = %s AND deleted_at IS NULL`,
		b.bind(now), b.bind(now), b.bind(id))

	res, err := s.db.ExecContext(ctx, q, b.args...)
	if err != nil {
		return fmt.Errorf("soft delete service: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete service: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound()
	}
	return nil
}

func (s *Store) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	b := &qb{dialect: s.dialect}
	q := fmt.Sprintf(`DELETE FROM services WHERE deleted_at IS NOT NULL AND deleted_at < %s`, b.bind(cutoff))

	res, err := s.db.ExecContext(ctx, q, b.args...)
	if err != nil {
		return 0, fmt.Errorf("purge services: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge services: %w", err)
	}
	return int(affected), nil
}

func (s *Store) Count(ctx context.Context, f domain.Filter) (int, error) {
	b := &qb{dialect: s.dialect}
	q := `SELECT COUNT(*) FROM services WHERE ` + filterWhere(b, f, " AND ")
	var total int
	if err := s.db.QueryRowContext(ctx, q, b.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return total, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for integration tests that need to
// inspect soft-deleted rows directly.
func (s *Store) DB() *sql.DB { return s.db }

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKy
	}
	return false
}
