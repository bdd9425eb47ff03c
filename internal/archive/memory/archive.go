// Package memory stores raw documents in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/contractwatch/noticecrawler/internal/notice"
	"github.com/contractwatch/noticecrawler/internal/payload"
)

// Archive is an in-memory notice.Archive. Rows are append-only, matching
// the immutability contract of the Postgres implementation.
type Archive struct {
	mu     sync.RWMutex
	docs   []notice.RawDocument
	ids    notice.IDGenerator
	hasher notice.Hasher
	clock  notice.Clock
}

// New creates an in-memory archive.
func New(ids notice.IDGenerator, hasher notice.Hasher, clock notice.Clock) *Archive {
	return &Archive{ids: ids, hasher: hasher, clock: clock}
}

// Put compresses and appends one document row.
func (a *Archive) Put(_ context.Context, source, sourceID, url, kind, mime string, statusCode int, raw []byte) (string, error) {
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

	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs = append(a.docs, notice.RawDocument{
		ArchiveID:   archiveID,
		Source:      source,
		SourceID:    sourceID,
		URL:         url,
		Kind:        kind,
		MIME:        mime,
		StatusCode:  statusCode,
		PayloadGZ:   gz,
		ContentHash: &hash,
		FetchedAt:   a.clock.Now(),
	})
	return archiveID, nil
}

// GetLatest returns the newest document for (source, sourceID, kind).
func (a *Archive) GetLatest(_ context.Context, source, sourceID, kind string) (notice.RawDocument, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	best := -1
	for i, doc := range a.docs {
		if doc.Source != source || doc.SourceID != sourceID || doc.Kind != kind {
			continue
		}
		if best < 0 || doc.FetchedAt.After(a.docs[best].FetchedAt) {
			best = i
		}
	}
	if best < 0 {
		return notice.RawDocument{}, notice.ErrNotFound
	}
	return a.docs[best], nil
}

// LatestListings returns the newest listing per logical page id matching the prefix.
func (a *Archive) LatestListings(_ context.Context, source, prefix string, limit int) ([]notice.RawDocument, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	latest := make(map[string]notice.RawDocument)
	for _, doc := range a.docs {
		if doc.Source != source || doc.Kind != notice.KindListing || !strings.HasPrefix(doc.SourceID, prefix) {
			continue
		}
		prev, ok := latest[doc.SourceID]
		if !ok || doc.FetchedAt.After(prev.FetchedAt) {
			latest[doc.SourceID] = doc
		}
	}

	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var docs []notice.RawDocument
	for _, k := range keys {
		if limit > 0 && len(docs) >= limit {
			break
		}
		docs = append(docs, latest[k])
	}
	return docs, nil
}
