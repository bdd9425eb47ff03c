// Package notice defines the core types and interfaces shared across the
// discovery, archive, and extraction subsystems.
package notice

import "time"

// Document kinds stored in the raw archive.
const (
	KindListing = "listing"
	KindDetail  = "detail"
)

// Notice types derived by the extraction engine.
const (
	TypeTender = "tender"
	TypeAward  = "award"
)

// RawDocument is one immutable archived snapshot of a fetched document.
// Multiple rows may exist per (source, source_id, kind); the newest by
// FetchedAt is authoritative for extraction.
type RawDocument struct {
	ArchiveID   string    `db:"archive_id"`
	Source      string    `db:"source"`
	SourceID    string    `db:"source_id"`
	URL         string    `db:"url"`
	Kind        string    `db:"kind"`
	MIME        string    `db:"mime"`
	StatusCode  int       `db:"status_code"`
	PayloadGZ   []byte    `db:"payload_gz"`
	ContentHash *string   `db:"content_hash"`
	FetchedAt   time.Time `db:"fetched_at"`
}

// Record is one row of the deduplicated notice catalogue.
// Nullable fields are pointers; absent means "not yet extracted".
type Record struct {
	UID             string     `db:"uid"`
	Source          string     `db:"source"`
	SourceID        string     `db:"source_id"`
	SourceURL       string     `db:"source_url"`
	LatestArchiveID *string    `db:"latest_archive_id"`
	Title           *string    `db:"title"`
	ShortDesc       *string    `db:"short_desc"`
	BuyerName       *string    `db:"buyer_name"`
	BuyerCountry    *string    `db:"buyer_country"`
	NoticeType      string     `db:"notice_type"`
	PublishedAt     *time.Time `db:"published_at"`
	Deadline        *time.Time `db:"deadline"`
	Currency        *string    `db:"currency"`
	ValueMin        *float64   `db:"value_min"`
	ValueMax        *float64   `db:"value_max"`
	ValueText       *string    `db:"value_text"`
	CPVCodes        []string   `db:"cpv_codes"`
	RegionCode      *string    `db:"region_code"`
	IngestedAt      time.Time  `db:"ingested_at"`
}

// FieldSet is the complete shape produced by one extraction pass.
// Every key is always present; a nil field means the extractor found
// nothing for it. The registry merges a FieldSet coalesce-style.
type FieldSet struct {
	Title        *string
	ShortDesc    *string
	BuyerName    *string
	BuyerCountry *string
	NoticeType   string
	PublishedAt  *time.Time
	Deadline     *time.Time
	Currency     *string
	ValueMin     *float64
	ValueMax     *float64
	ValueText    *string
	CPVCodes     []string
	RegionCode   *string
}

// FetchResult is returned by a single fetch-and-archive operation.
type FetchResult struct {
	ArchiveID  string
	StatusCode int
	Body       []byte
}

// Report aggregates the outcome of one batch job. A job always finishes
// with a report, even when every unit failed.
type Report struct {
	Seen      int
	Processed int
	Inserted  int
	Skipped   int
	Failed    int
	Duration  time.Duration
}
