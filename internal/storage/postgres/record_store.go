// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crawlkit/crawld/internal/crawl"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for crawl rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RecordStore persists crawl records in Postgres.
//
// Expected schema:
//
//	CREATE TABLE crawls (
//		id UUID PRIMARY KEY,
//		url TEXT NOT NULL,
//		content_hash TEXT NOT NULL,
//		status TEXT NOT NULL,
//		artifact_ref TEXT NOT NULL DEFAULT '',
//		task_id TEXT NOT NULL DEFAULT '',
//		created_at TIMESTAMPTZ NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX crawls_content_hash_key ON crawls (content_hash);
//
// The unique index on content_hash closes the concurrent-submission
// window: Create is insert-or-fetch-on-conflict, so at most one record
// per hash ever exists.
type RecordStore struct {
	pool  dbConn
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "crawls"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
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
	return &RecordStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool dbConn, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "crawls"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a crawl row. When a row with the same content hash
// already exists the insert is a no-op and the existing row is
// returned with created=false.
func (s *RecordStore) Create(ctx context.Context, rec crawl.Record) (crawl.Record, bool, error) {
	if rec.ID == "" {
		return crawl.Record{}, false, fmt.Errorf("record id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt

	query := fmt.Sprintf(`
INSERT INTO %s (id, url, content_hash, status, artifact_ref, task_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (content_hash) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.URL,
		rec.ContentHash,
		string(rec.Status),
		rec.ArtifactRef,
		rec.TaskID,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return crawl.Record{}, false, fmt.Errorf("insert crawl: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.GetByHash(ctx, rec.ContentHash)
		if err != nil {
			return crawl.Record{}, false, fmt.Errorf("fetch conflicting crawl: %w", err)
		}
		return existing, false, nil
	}
	return rec, true, nil
}

// GetByID fetches a crawl row by primary key.
func (s *RecordStore) GetByID(ctx context.Context, id string) (crawl.Record, error) {
	query := fmt.Sprintf(`
SELECT id, url, content_hash, status, artifact_ref, task_id, created_at, updated_at
FROM %s WHERE id = $1`, s.table)
	return s.scanRecord(s.pool.QueryRow(ctx, query, id))
}

// GetByHash resolves the dedup index: the most recently created row
// for the hash.
func (s *RecordStore) GetByHash(ctx context.Context, hash string) (crawl.Record, error) {
	query := fmt.Sprintf(`
SELECT id, url, content_hash, status, artifact_ref, task_id, created_at, updated_at
FROM %s WHERE content_hash = $1
ORDER BY created_at DESC
LIMIT 1`, s.table)
	return s.scanRecord(s.pool.QueryRow(ctx, query, hash))
}

// UpdateStatus transitions a crawl row. The artifact reference is
// persisted only for Complete and cleared for every other status.
func (s *RecordStore) UpdateStatus(ctx context.Context, id string, status crawl.Status, artifactRef string) error {
	if status != crawl.StatusComplete {
		artifactRef = ""
	}
	query := fmt.Sprintf(`
UPDATE %s SET status = $2, artifact_ref = $3, updated_at = NOW()
WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, string(status), artifactRef)
	if err != nil {
		return fmt.Errorf("update crawl status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}

// SetTaskID records the most recently dispatched task id for a row.
func (s *RecordStore) SetTaskID(ctx context.Context, id, taskID string) error {
	query := fmt.Sprintf(`
UPDATE %s SET task_id = $2, updated_at = NOW()
WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, taskID)
	if err != nil {
		return fmt.Errorf("update crawl task id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}

func (s *RecordStore) scanRecord(row pgx.Row) (crawl.Record, error) {
	var (
		rec    crawl.Record
		status string
	)
	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.ContentHash,
		&status,
		&rec.ArtifactRef,
		&rec.TaskID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawl.Record{}, crawl.ErrNotFound
		}
		return crawl.Record{}, fmt.Errorf("scan crawl row: %w", err)
	}
	rec.Status = crawl.Status(status)
	return rec, nil
}
