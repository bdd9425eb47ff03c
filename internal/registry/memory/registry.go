// Package memory keeps the notice catalogue in-memory for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/contractwatch/noticecrawler/internal/notice"
)

// Registry is an in-memory notice.Registry with the same conditional
// insert and coalesce-merge semantics as the Postgres implementation.
type Registry struct {
	mu            sync.Mutex
	records       map[string]*notice.Record
	defaultRegion string
	clock         notice.Clock
}

// New creates an in-memory registry.
func New(defaultRegion string, clock notice.Clock) *Registry {
	return &Registry{
		records:       make(map[string]*notice.Record),
		defaultRegion: defaultRegion,
		clock:         clock,
	}
}

// RegisterIfAbsent inserts a placeholder record unless one exists.
func (r *Registry) RegisterIfAbsent(_ context.Context, uid, source, sourceID, sourceURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := source + "\x00" + sourceID
	if _, ok := r.records[key]; ok {
		return false, nil
	}
	rec := &notice.Record{
		UID:        uid,
		Source:     source,
		SourceID:   sourceID,
		SourceURL:  sourceURL,
		NoticeType: notice.TypeTender,
		IngestedAt: r.clock.Now(),
	}
	if r.defaultRegion != "" {
		region := r.defaultRegion
		rec.RegionCode = &region
	}
	r.records[key] = rec
	return true, nil
}

// MergeFields fills empty fields from fs; NoticeType and BuyerCountry may
// be corrected; CPV codes replace only when non-empty.
func (r *Registry) MergeFields(_ context.Context, source, sourceID string, fs notice.FieldSet) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[source+"\x00"+sourceID]
	if !ok {
		return 0, nil
	}

	coalesceString(&rec.Title, fs.Title)
	coalesceString(&rec.ShortDesc, fs.ShortDesc)
	coalesceString(&rec.BuyerName, fs.BuyerName)
	if fs.BuyerCountry != nil {
		rec.BuyerCountry = fs.BuyerCountry
	}
	if fs.NoticeType != "" {
		rec.NoticeType = fs.NoticeType
	}
	coalesceTime(&rec.PublishedAt, fs.PublishedAt)
	coalesceTime(&rec.Deadline, fs.Deadline)
	coalesceString(&rec.Currency, fs.Currency)
	coalesceFloat(&rec.ValueMin, fs.ValueMin)
	coalesceFloat(&rec.ValueMax, fs.ValueMax)
	coalesceString(&rec.ValueText, fs.ValueText)
	if len(fs.CPVCodes) > 0 {
		rec.CPVCodes = append([]string(nil), fs.CPVCodes...)
	}
	coalesceString(&rec.RegionCode, fs.RegionCode)

	return 1, nil
}

// ListPending returns backlog records newest-ingested-first.
func (r *Registry) ListPending(_ context.Context, source string, filter notice.PendingFilter, limit int) ([]notice.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []notice.Record
	for _, rec := range r.records {
		if rec.Source != source {
			continue
		}
		switch filter {
		case notice.PendingDetail:
			if rec.LatestArchiveID != nil {
				continue
			}
		case notice.PendingExtraction:
			if rec.LatestArchiveID == nil {
				continue
			}
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].IngestedAt.After(out[j].IngestedAt)
		}
		return out[i].UID < out[j].UID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetLatestArchive links the newest detail archive row to a record.
func (r *Registry) SetLatestArchive(_ context.Context, source, sourceID, archiveID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[source+"\x00"+sourceID]; ok {
		id := archiveID
		rec.LatestArchiveID = &id
	}
	return nil
}

// Get returns a copy of the stored record, for assertions in tests.
func (r *Registry) Get(source, sourceID string) (notice.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[source+"\x00"+sourceID]
	if !ok {
		return notice.Record{}, false
	}
	return *rec, true
}

func coalesceString(dst **string, src *string) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

func coalesceTime(dst **time.Time, src *time.Time) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

func coalesceFloat(dst **float64, src *float64) {
	if *dst == nil && src != nil {
		*dst = src
	}
}
