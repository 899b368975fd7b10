// Package store provides the Postgres persistence gateway for projects and
// change-detection cache rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/catalog"
	"github.com/pzntech/showcase-crawler/internal/limiter"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// PoolIface is the slice of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type PoolIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store persists projects and cache entries in Postgres.
type Store struct {
	pool   PoolIface
	clock  catalog.Clock
	lim    *limiter.Limiter
	logger *zap.Logger
}

// New connects a Store using the provided config.
func New(
	ctx context.Context,
	cfg Config,
	clock catalog.Clock,
	lim *limiter.Limiter,
	logger *zap.Logger,
) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewWithPool(pool, clock, lim, logger), nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool PoolIface, clock catalog.Clock, lim *limiter.Limiter, logger *zap.Logger) *Store {
	return &Store{pool: pool, clock: clock, lim: lim, logger: logger}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	identifier TEXT NOT NULL UNIQUE,
	"order" INT NOT NULL,
	branch TEXT NOT NULL,
	season INT NOT NULL,
	date DATE NOT NULL,
	creator TEXT,
	creator_lower TEXT,
	link TEXT NOT NULL,
	link_lower TEXT NOT NULL,
	description TEXT NOT NULL,
	screenshot TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS cache (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ,
	UNIQUE (type, name)
);`

// EnsureSchema creates the projects and cache tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const upsertProjectSQL = `
INSERT INTO projects (
	identifier, "order", branch, season, date,
	creator, creator_lower, link, link_lower, description, screenshot
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (identifier) DO UPDATE SET
	"order" = EXCLUDED."order",
	branch = EXCLUDED.branch,
	season = EXCLUDED.season,
	date = EXCLUDED.date,
	creator = EXCLUDED.creator,
	creator_lower = EXCLUDED.creator_lower,
	link = EXCLUDED.link,
	link_lower = EXCLUDED.link_lower,
	description = EXCLUDED.description,
	screenshot = EXCLUDED.screenshot,
	updated_at = $12`

// UpsertProjects writes a batch of projects in one transaction. Each row is
// keyed on identifier: conflicts replace all mutable fields and stamp
// updated_at with the batch start time. A mid-batch failure rolls the whole
// batch back, so partial upserts within one branch week are never
// observable. The batch holds one slot of the shared limiter so persistence
// and screenshot capture draw from the same resource budget.
func (s *Store) UpsertProjects(ctx context.Context, projects []catalog.Project) error {
	if len(projects) == 0 {
		return nil
	}
	if err := s.lim.Acquire(ctx); err != nil {
		return err
	}
	defer s.lim.Release()

	now := s.clock.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback upsert tx", zap.Error(rbErr))
		}
	}()

	for _, p := range projects {
		_, err := tx.Exec(ctx, upsertProjectSQL,
			p.Identifier,
			p.Order,
			p.Branch,
			p.Season,
			p.Date,
			nullable(p.Creator),
			nullable(p.CreatorLower),
			p.Link,
			p.LinkLower,
			p.Description,
			nullable(p.Screenshot),
			now,
		)
		if err != nil {
			return fmt.Errorf("upsert project %s: %w", p.Identifier, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	s.logger.Info("projects upserted", zap.Int("count", len(projects)))
	return nil
}

const upsertCacheSQL = `
INSERT INTO cache (type, name, hash) VALUES ($1,$2,$3)
ON CONFLICT (type, name) DO UPDATE SET
	hash = EXCLUDED.hash,
	updated_at = $4`

// UpsertCacheEntry inserts or refreshes one change-detection row, keyed on
// (type, name).
func (s *Store) UpsertCacheEntry(ctx context.Context, entry catalog.CacheEntry) error {
	now := s.clock.Now()
	if _, err := s.pool.Exec(ctx, upsertCacheSQL, string(entry.Type), entry.Name, entry.Hash, now); err != nil {
		return fmt.Errorf("upsert cache entry %s:%s: %w", entry.Type, entry.Name, err)
	}
	return nil
}

// LoadCacheEntries reads the whole cache table for the run-start snapshot.
func (s *Store) LoadCacheEntries(ctx context.Context) ([]catalog.CacheEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT type, name, hash, updated_at FROM cache`)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	var entries []catalog.CacheEntry
	for rows.Next() {
		var (
			entry     catalog.CacheEntry
			entryType string
		)
		if err := rows.Scan(&entryType, &entry.Name, &entry.Hash, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		entry.Type = catalog.CacheType(entryType)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache rows: %w", err)
	}
	return entries, nil
}

const selectProjectColumns = `SELECT identifier, "order", branch, season, date,
	creator, creator_lower, link, link_lower, description, screenshot,
	created_at, updated_at
FROM projects`

// ListProjects returns one season's projects matching a case-insensitive
// substring search over link_lower and creator_lower, ordered by week date
// then order.
func (s *Store) ListProjects(ctx context.Context, search string, season int) ([]catalog.Project, error) {
	query := selectProjectColumns + `
WHERE (link_lower LIKE '%' || $1 || '%' OR creator_lower LIKE '%' || $1 || '%')
	AND season = $2
ORDER BY date, "order"`
	rows, err := s.pool.Query(ctx, query, search, season)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return scanProjects(rows)
}

// ListAllProjects returns every project ordered by season, week date, then
// order; used by the metadata aggregation.
func (s *Store) ListAllProjects(ctx context.Context) ([]catalog.Project, error) {
	query := selectProjectColumns + `
ORDER BY season, date, "order"`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all projects: %w", err)
	}
	return scanProjects(rows)
}

func scanProjects(rows pgx.Rows) ([]catalog.Project, error) {
	defer rows.Close()

	var projects []catalog.Project
	for rows.Next() {
		var (
			p            catalog.Project
			creator      *string
			creatorLower *string
			screenshot   *string
		)
		err := rows.Scan(
			&p.Identifier,
			&p.Order,
			&p.Branch,
			&p.Season,
			&p.Date,
			&creator,
			&creatorLower,
			&p.Link,
			&p.LinkLower,
			&p.Description,
			&screenshot,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		p.Creator = deref(creator)
		p.CreatorLower = deref(creatorLower)
		p.Screenshot = deref(screenshot)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project rows: %w", err)
	}
	return projects, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
