// Package postgres provides the Postgres-backed notice registry.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractwatch/noticecrawler/internal/notice"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for registry rows.
type Config struct {
	DSN             string
	Table           string
	DefaultRegion   string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Registry is the deduplicated, append/merge-only notice catalogue.
type Registry struct {
	pool          dbPool
	table         string
	defaultRegion string
	clock         notice.Clock
}

// New creates a Postgres-backed Registry using the provided config.
func New(ctx context.Context, cfg Config, clock notice.Clock) (*Registry, error) {
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
	return NewWithPool(pool, cfg.Table, cfg.DefaultRegion, clock)
}

// NewWithPool constructs a Registry from an existing pool (primarily for testing).
func NewWithPool(pool dbPool, table, defaultRegion string, clock notice.Clock) (*Registry, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if table == "" {
		table = "notices"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Registry{pool: pool, table: table, defaultRegion: defaultRegion, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (r *Registry) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// RegisterIfAbsent inserts a placeholder record unless one exists for
// (source, sourceID). The check and insert are a single conditional
// statement so concurrent callers cannot double-insert.
func (r *Registry) RegisterIfAbsent(ctx context.Context, uid, source, sourceID, sourceURL string) (bool, error) {
	query := fmt.Sprintf(`
INSERT INTO %[1]s (uid, source, source_id, source_url, notice_type, region_code, ingested_at)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE NOT EXISTS (
	SELECT 1 FROM %[1]s WHERE source = $2 AND source_id = $3
)`, r.table)

	tag, err := r.pool.Exec(ctx, query,
		uid, source, sourceID, sourceURL, notice.TypeTender, nullIfEmpty(r.defaultRegion), r.clock.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("register notice: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MergeFields applies a coalesce-style update: each field is filled only
// where the stored value is still null. NoticeType and BuyerCountry take
// the new value when present, since extraction may correct the seeds.
// CPV codes are replaced wholesale only when the new set is non-empty.
func (r *Registry) MergeFields(ctx context.Context, source, sourceID string, fs notice.FieldSet) (int64, error) {
	query := fmt.Sprintf(`
UPDATE %s SET
	title         = COALESCE(title, $3),
	short_desc    = COALESCE(short_desc, $4),
	buyer_name    = COALESCE(buyer_name, $5),
	buyer_country = COALESCE($6, buyer_country),
	notice_type   = COALESCE($7, notice_type),
	published_at  = COALESCE(published_at, $8),
	deadline      = COALESCE(deadline, $9),
	currency      = COALESCE(currency, $10),
	value_min     = COALESCE(value_min, $11),
	value_max     = COALESCE(value_max, $12),
	value_text    = COALESCE(value_text, $13),
	cpv_codes     = CASE WHEN $14::text[] IS NULL OR cardinality($14::text[]) = 0
	                     THEN cpv_codes ELSE $14::text[] END,
	region_code   = COALESCE(region_code, $15)
WHERE source = $1 AND source_id = $2`, r.table)

	tag, err := r.pool.Exec(ctx, query,
		source, sourceID,
		fs.Title,
		fs.ShortDesc,
		fs.BuyerName,
		fs.BuyerCountry,
		nullIfEmpty(fs.NoticeType),
		fs.PublishedAt,
		fs.Deadline,
		fs.Currency,
		fs.ValueMin,
		fs.ValueMax,
		fs.ValueText,
		cpvArray(fs.CPVCodes),
		fs.RegionCode,
	)
	if err != nil {
		return 0, fmt.Errorf("merge notice fields: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListPending returns backlog records newest-ingested-first. PendingDetail
// selects records with no linked detail archive; PendingExtraction selects
// records that already have one.
func (r *Registry) ListPending(ctx context.Context, source string, filter notice.PendingFilter, limit int) ([]notice.Record, error) {
	var predicate string
	switch filter {
	case notice.PendingDetail:
		predicate = "latest_archive_id IS NULL"
	case notice.PendingExtraction:
		predicate = "latest_archive_id IS NOT NULL"
	default:
		return nil, fmt.Errorf("unknown pending filter %q", filter)
	}

	query := fmt.Sprintf(`
SELECT uid, source, source_id, source_url, latest_archive_id,
	title, short_desc, buyer_name, buyer_country, notice_type,
	published_at, deadline, currency, value_min, value_max, value_text,
	cpv_codes, region_code, ingested_at
FROM %s
WHERE source = $1 AND %s
ORDER BY ingested_at DESC
LIMIT $2`, r.table, predicate)

	rows, err := r.pool.Query(ctx, query, source, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending notices: %w", err)
	}
	defer rows.Close()

	var records []notice.Record
	for rows.Next() {
		var rec notice.Record
		if err := rows.Scan(
			&rec.UID,
			&rec.Source,
			&rec.SourceID,
			&rec.SourceURL,
			&rec.LatestArchiveID,
			&rec.Title,
			&rec.ShortDesc,
			&rec.BuyerName,
			&rec.BuyerCountry,
			&rec.NoticeType,
			&rec.PublishedAt,
			&rec.Deadline,
			&rec.Currency,
			&rec.ValueMin,
			&rec.ValueMax,
			&rec.ValueText,
			&rec.CPVCodes,
			&rec.RegionCode,
			&rec.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notice record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending notices: %w", err)
	}
	return records, nil
}

// SetLatestArchive links the newest detail archive row to a record.
func (r *Registry) SetLatestArchive(ctx context.Context, source, sourceID, archiveID string) error {
	query := fmt.Sprintf(`
UPDATE %s SET latest_archive_id = $3
WHERE source = $1 AND source_id = $2`, r.table)

	if _, err := r.pool.Exec(ctx, query, source, sourceID, archiveID); err != nil {
		return fmt.Errorf("set latest archive: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// limitArg maps limit <= 0 to a NULL bind, which Postgres treats as
// LIMIT ALL. Binding a literal 0 would return zero rows.
func limitArg(limit int) any {
	if limit > 0 {
		return limit
	}
	return nil
}

func cpvArray(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	return codes
}
