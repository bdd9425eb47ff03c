// Package postgres provides the Postgres-backed raw document archive.
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

	"github.com/contractwatch/noticecrawler/internal/notice"
	"github.com/contractwatch/noticecrawler/internal/payload"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for archive rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Archive writes and reads immutable raw document rows in Postgres.
type Archive struct {
	pool   dbPool
	table  string
	ids    notice.IDGenerator
	hasher notice.Hasher
	clock  notice.Clock
}

// New creates a Postgres-backed Archive using the provided config.
func New(ctx context.Context, cfg Config, ids notice.IDGenerator, hasher notice.Hasher, clock notice.Clock) (*Archive, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, cfg.Table, ids, hasher, clock)
}

// NewWithPool constructs an Archive from an existing pool (primarily for testing).
func NewWithPool(pool dbPool, table string, ids notice.IDGenerator, hasher notice.Hasher, clock notice.Clock) (*Archive, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil || hasher == nil || clock == nil {
		return nil, fmt.Errorf("id generator, hasher, and clock are required")
	}
	if table == "" {
		table = "raw_documents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Archive{pool: pool, table: table, ids: ids, hasher: hasher, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (a *Archive) Close() {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.Close()
}

// Put compresses and inserts one fetched document. Each call produces a
// new row; prior rows are never touched.
func (a *Archive) Put(ctx context.Context, source, sourceID, url, kind, mime string, statusCode int, raw []byte) (string, error) {
	if source == "" || sourceID == "" {
		return "", fmt.Errorf("source and source id are required")
	}
	archiveID, err := a.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate archive id: %w", err)
	}
	gz, err := payload.Compress(raw)
	if err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}
	hash, err := a.hasher.Hash(raw)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	archive_id,
	source,
	source_id,
	url,
	kind,
	mime,
	status_code,
	payload_gz,
	content_hash,
	fetched_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, a.table)

	_, err = a.pool.Exec(ctx, query,
		archiveID, source, sourceID, url, kind, mime, statusCode, gz, hash, a.clock.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert raw document: %w", err)
	}
	return archiveID, nil
}

// GetLatest returns the newest document for (source, sourceID, kind).
func (a *Archive) GetLatest(ctx context.Context, source, sourceID, kind string) (notice.RawDocument, error) {
	query := fmt.Sprintf(`
SELECT archive_id, source, source_id, url, kind, mime, status_code, payload_gz, content_hash, fetched_at
FROM %s
WHERE source = $1 AND source_id = $2 AND kind = $3
ORDER BY fetched_at DESC
LIMIT 1`, a.table)

	var doc notice.RawDocument
	err := a.pool.QueryRow(ctx, query, source, sourceID, kind).Scan(
		&doc.ArchiveID,
		&doc.Source,
		&doc.SourceID,
		&doc.URL,
		&doc.Kind,
		&doc.MIME,
		&doc.StatusCode,
		&doc.PayloadGZ,
		&doc.ContentHash,
		&doc.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notice.RawDocument{}, notice.ErrNotFound
		}
		return notice.RawDocument{}, fmt.Errorf("get latest raw document: %w", err)
	}
	return doc, nil
}

// LatestListings returns the newest listing document per logical page id
// matching the prefix (e.g. "results:p="), up to limit rows.
func (a *Archive) LatestListings(ctx context.Context, source, prefix string, limit int) ([]notice.RawDocument, error) {
	query := fmt.Sprintf(`
SELECT DISTINCT ON (source_id)
	archive_id, source, source_id, url, kind, mime, status_code, payload_gz, content_hash, fetched_at
FROM %s
WHERE source = $1 AND kind = $2 AND source_id LIKE $3
ORDER BY source_id, fetched_at DESC
LIMIT $4`, a.table)

	rows, err := a.pool.Query(ctx, query, source, notice.KindListing, prefix+"%", limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list archived listings: %w", err)
	}
	defer rows.Close()

	var docs []notice.RawDocument
	for rows.Next() {
		var doc notice.RawDocument
		if err := rows.Scan(
			&doc.ArchiveID,
			&doc.Source,
			&doc.SourceID,
			&doc.URL,
			&doc.Kind,
			&doc.MIME,
			&doc.StatusCode,
			&doc.PayloadGZ,
			&doc.ContentHash,
			&doc.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan raw document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived listings: %w", err)
	}
	return docs, nil
}

// limitArg maps limit <= 0 to a NULL bind, which Postgres treats as
// LIMIT ALL. Binding a literal 0 would return zero rows.
func limitArg(limit int) any {
	if limit > 0 {
		return limit
	}
	return nil
}
