package notice

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

// PendingFilter selects which backlog ListPending returns.
type PendingFilter string

// Pending filters understood by the registry.
const (
	// PendingDetail selects records that have no detail archive yet.
	PendingDetail PendingFilter = "detail"
	// PendingExtraction selects records that already have a detail archive.
	PendingExtraction PendingFilter = "extraction"
)

// Archive is the content-addressable store of fetched documents.
// Implementations never mutate a prior record.
type Archive interface {
	// Put compresses and stores one fetched document, returning the
	// generated archive id. Storage-layer errors surface unchanged.
	Put(ctx context.Context, source, sourceID, url, kind, mime string, statusCode int, raw []byte) (string, error)

	// GetLatest returns the newest document for (source, sourceID, kind),
	// or ErrNotFound.
	GetLatest(ctx context.Context, source, sourceID, kind string) (RawDocument, error)

	// LatestListings returns the newest listing document per logical page
	// id matching the prefix, up to limit rows.
	LatestListings(ctx context.Context, source, prefix string, limit int) ([]RawDocument, error)
}

// Registry is the deduplicated catalogue of known notices.
type Registry interface {
	// RegisterIfAbsent inserts a placeholder record unless one already
	// exists for (source, sourceID). The insert is a single conditional
	// statement, safe under concurrent callers racing on the same uid.
	RegisterIfAbsent(ctx context.Context, uid, source, sourceID, sourceURL string) (bool, error)

	// MergeFields applies a coalesce-style update: fields are filled only
	// where currently empty, except NoticeType and BuyerCountry which may
	// be corrected. CPV codes are replaced wholesale only when non-empty.
	MergeFields(ctx context.Context, source, sourceID string, fs FieldSet) (int64, error)

	// ListPending returns backlog records newest-ingested-first.
	ListPending(ctx context.Context, source string, filter PendingFilter, limit int) ([]Record, error)

	// SetLatestArchive links the newest detail archive row to a record.
	SetLatestArchive(ctx context.Context, source, sourceID, archiveID string) error
}

// Fetcher performs one logical fetch-and-archive operation. Non-2xx
// responses are archived and reported, not raised.
type Fetcher interface {
	FetchAndArchive(ctx context.Context, kind, source, sourceID, url string) (FetchResult, error)
}

// Hasher computes digests for integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces archive ids (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
