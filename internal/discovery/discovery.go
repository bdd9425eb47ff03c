// Package discovery enumerates notice identifiers from listing pages and
// registers previously-unseen ones into the notice registry.
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/contractwatch/noticecrawler/internal/metrics"
	"github.com/contractwatch/noticecrawler/internal/notice"
	"github.com/contractwatch/noticecrawler/internal/payload"
)

// noticeIDPattern captures the 36-character hex-with-hyphens token that
// follows the /notice/ path segment on results pages, case-insensitive.
var noticeIDPattern = regexp.MustCompile(`(?i)/notice/([0-9a-f-]{36})\b`)

// ListingPrefix keys archived results pages by page index.
const ListingPrefix = "results:p="

// Config identifies the upstream source being walked.
type Config struct {
	Source     string
	BaseURL    string
	PerPageCap int
}

// Discovery extracts candidate identifiers and registers new ones. The
// uniqueness contract lives in the registry's conditional insert, not
// here: identical identifiers across page indices are expected and must
// not double-insert.
type Discovery struct {
	cfg      Config
	registry notice.Registry
	archive  notice.Archive
	logger   *zap.Logger
}

// PageStats counts one page's discovery outcome.
type PageStats struct {
	Seen     int
	Inserted int
	Skipped  int
}

// New creates a Discovery.
func New(cfg Config, registry notice.Registry, archive notice.Archive, logger *zap.Logger) (*Discovery, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{cfg: cfg, registry: registry, archive: archive, logger: logger}, nil
}

// ListingURL builds the results-page URL for a page index.
func (d *Discovery) ListingURL(page int) string {
	return fmt.Sprintf("%s/Search/Results?page=%d", strings.TrimRight(d.cfg.BaseURL, "/"), page)
}

// ListingID builds the logical archive id for a page index.
func (d *Discovery) ListingID(page int) string {
	return fmt.Sprintf("%s%d", ListingPrefix, page)
}

// NoticeURL builds the detail URL for a notice identifier.
func (d *Discovery) NoticeURL(sourceID string) string {
	return fmt.Sprintf("%s/notice/%s", strings.TrimRight(d.cfg.BaseURL, "/"), sourceID)
}

// ExtractIDs scans listing markup for notice identifiers, lower-casing
// and deduplicating within the page, capped at limit when limit > 0.
// Unparsable or empty input yields zero identifiers, not an error.
func ExtractIDs(body []byte, limit int) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range noticeIDPattern.FindAllSubmatch(body, -1) {
		id := strings.ToLower(string(m[1]))
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids
}

// ScanPage registers every unseen identifier on one listing document.
func (d *Discovery) ScanPage(ctx context.Context, body []byte) (PageStats, error) {
	var stats PageStats
	for _, sourceID := range ExtractIDs(body, d.cfg.PerPageCap) {
		stats.Seen++
		uid := notice.UID(d.cfg.Source, sourceID)
		inserted, err := d.registry.RegisterIfAbsent(ctx, uid, d.cfg.Source, sourceID, d.NoticeURL(sourceID))
		if err != nil {
			return stats, fmt.Errorf("register %s: %w", uid, err)
		}
		if inserted {
			stats.Inserted++
			metrics.RecordRegistered(d.cfg.Source, "inserted")
		} else {
			stats.Skipped++
			metrics.RecordRegistered(d.cfg.Source, "skipped")
		}
	}
	return stats, nil
}

// FromArchivedListings re-scans the latest archived copy of each results
// page instead of fetching live, applying the same extraction and dedup.
func (d *Discovery) FromArchivedListings(ctx context.Context, limit int) (notice.Report, error) {
	if d.archive == nil {
		return notice.Report{}, fmt.Errorf("archive is required for archived-listing discovery")
	}
	docs, err := d.archive.LatestListings(ctx, d.cfg.Source, ListingPrefix, limit)
	if err != nil {
		return notice.Report{}, fmt.Errorf("load archived listings: %w", err)
	}

	var report notice.Report
	for _, doc := range docs {
		raw, err := payload.Decompress(doc.PayloadGZ)
		if err != nil {
			d.logger.Warn("skipping undecodable archived listing",
				zap.String("source_id", doc.SourceID), zap.Error(err))
			report.Failed++
			continue
		}
		stats, err := d.ScanPage(ctx, raw)
		report.Seen += stats.Seen
		report.Inserted += stats.Inserted
		report.Skipped += stats.Skipped
		if err != nil {
			report.Failed++
			continue
		}
		report.Processed++
	}
	return report, nil
}
