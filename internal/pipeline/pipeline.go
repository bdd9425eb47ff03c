// Package pipeline orchestrates the discovery, backfill, and extraction
// batch jobs over the archive and registry.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/contractwatch/noticecrawler/internal/discovery"
	"github.com/contractwatch/noticecrawler/internal/extract"
	"github.com/contractwatch/noticecrawler/internal/metrics"
	"github.com/contractwatch/noticecrawler/internal/notice"
	"github.com/contractwatch/noticecrawler/internal/payload"
)

// Extractor turns archived detail markup into a field set.
type Extractor interface {
	Extract(html string) notice.FieldSet
}

// Config controls job behavior shared across runs.
type Config struct {
	Source string
	// Pacing is the minimum interval between outbound requests. Zero
	// disables pacing.
	Pacing time.Duration
}

// Pipeline runs the three batch jobs. Each job walks its own unit list,
// counts per-unit failures instead of aborting, and always returns a
// Report; the returned error is reserved for setup-level failures.
type Pipeline struct {
	cfg       Config
	discovery *discovery.Discovery
	fetcher   notice.Fetcher
	archive   notice.Archive
	registry  notice.Registry
	extractor Extractor
	limiter   *rate.Limiter
	clock     notice.Clock
	logger    *zap.Logger
}

// New validates the wiring and builds a Pipeline.
func New(cfg Config, disc *discovery.Discovery, fetcher notice.Fetcher, archive notice.Archive, registry notice.Registry, extractor Extractor, clock notice.Clock, logger *zap.Logger) (*Pipeline, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if disc == nil {
		return nil, fmt.Errorf("discovery is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Pacing), 1)
	}

	return &Pipeline{
		cfg:       cfg,
		discovery: disc,
		fetcher:   fetcher,
		archive:   archive,
		registry:  registry,
		extractor: extractor,
		limiter:   limiter,
		clock:     clock,
		logger:    logger,
	}, nil
}

// RunDiscovery fetches and archives listing pages fromPage through
// toPage inclusive, then registers every unseen notice identifier on
// each page. A page that cannot be fetched, or that came back non-2xx,
// counts as failed and the walk continues.
func (p *Pipeline) RunDiscovery(ctx context.Context, fromPage, toPage int) (notice.Report, error) {
	if fromPage < 1 || toPage < fromPage {
		return notice.Report{}, fmt.Errorf("invalid page range %d..%d", fromPage, toPage)
	}

	started := p.clock.Now()
	var report notice.Report
	for page := fromPage; page <= toPage; page++ {
		if err := p.pace(ctx); err != nil {
			report.Duration = p.clock.Now().Sub(started)
			return report, err
		}

		res, err := p.fetcher.FetchAndArchive(ctx, notice.KindListing, p.cfg.Source, p.discovery.ListingID(page), p.discovery.ListingURL(page))
		if err != nil {
			p.logger.Warn("listing fetch failed", zap.Int("page", page), zap.Error(err))
			report.Failed++
			metrics.RecordUnit("discovery", "failed")
			continue
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			p.logger.Warn("listing returned non-2xx",
				zap.Int("page", page), zap.Int("status", res.StatusCode))
			report.Failed++
			metrics.RecordUnit("discovery", "failed")
			continue
		}

		stats, err := p.discovery.ScanPage(ctx, res.Body)
		report.Seen += stats.Seen
		report.Inserted += stats.Inserted
		report.Skipped += stats.Skipped
		if err != nil {
			p.logger.Warn("listing scan failed", zap.Int("page", page), zap.Error(err))
			report.Failed++
			metrics.RecordUnit("discovery", "failed")
			continue
		}
		report.Processed++
		metrics.RecordUnit("discovery", "ok")
		p.logger.Info("listing page processed",
			zap.Int("page", page),
			zap.Int("seen", stats.Seen),
			zap.Int("inserted", stats.Inserted),
		)
	}
	report.Duration = p.clock.Now().Sub(started)
	return report, nil
}

// RunDetailBackfill fetches detail pages for records that have none
// archived yet, newest-ingested first, up to limit records. The archive
// link is recorded even for non-2xx responses; those documents stay in
// the archive exactly as received.
func (p *Pipeline) RunDetailBackfill(ctx context.Context, limit int) (notice.Report, error) {
	started := p.clock.Now()

	records, err := p.registry.ListPending(ctx, p.cfg.Source, notice.PendingDetail, limit)
	if err != nil {
		return notice.Report{}, fmt.Errorf("list pending details: %w", err)
	}

	var report notice.Report
	report.Seen = len(records)
	for _, rec := range records {
		if err := p.pace(ctx); err != nil {
			report.Duration = p.clock.Now().Sub(started)
			return report, err
		}

		res, err := p.fetcher.FetchAndArchive(ctx, notice.KindDetail, rec.Source, rec.SourceID, rec.SourceURL)
		if err != nil {
			p.logger.Warn("detail fetch failed",
				zap.String("source_id", rec.SourceID), zap.Error(err))
			report.Failed++
			metrics.RecordUnit("backfill", "failed")
			continue
		}
		if err := p.registry.SetLatestArchive(ctx, rec.Source, rec.SourceID, res.ArchiveID); err != nil {
			p.logger.Warn("archive link failed",
				zap.String("source_id", rec.SourceID), zap.Error(err))
			report.Failed++
			metrics.RecordUnit("backfill", "failed")
			continue
		}
		report.Processed++
		metrics.RecordUnit("backfill", "ok")
	}
	report.Duration = p.clock.Now().Sub(started)
	return report, nil
}

// RunExtraction re-reads archived detail documents for records that have
// one, extracts structured fields, and merges them into the registry.
// No network traffic and no pacing: this job is replayable from the
// archive alone.
func (p *Pipeline) RunExtraction(ctx context.Context, limit int) (notice.Report, error) {
	started := p.clock.Now()

	records, err := p.registry.ListPending(ctx, p.cfg.Source, notice.PendingExtraction, limit)
	if err != nil {
		return notice.Report{}, fmt.Errorf("list pending extractions: %w", err)
	}

	var report notice.Report
	report.Seen = len(records)
	for _, rec := range records {
		if err := p.extractOne(ctx, rec); err != nil {
			p.logger.Warn("extraction failed",
				zap.String("source_id", rec.SourceID), zap.Error(err))
			report.Failed++
			metrics.RecordUnit("extraction", "failed")
			continue
		}
		report.Processed++
		metrics.RecordUnit("extraction", "ok")
	}
	report.Duration = p.clock.Now().Sub(started)
	return report, nil
}

func (p *Pipeline) extractOne(ctx context.Context, rec notice.Record) error {
	doc, err := p.archive.GetLatest(ctx, rec.Source, rec.SourceID, notice.KindDetail)
	if err != nil {
		return fmt.Errorf("load archived detail: %w", err)
	}
	raw, err := payload.Decompress(doc.PayloadGZ)
	if err != nil {
		return fmt.Errorf("decompress archived detail: %w", err)
	}

	fs := p.extractor.Extract(string(raw))
	if _, err := p.registry.MergeFields(ctx, rec.Source, rec.SourceID, fs); err != nil {
		return fmt.Errorf("merge fields: %w", err)
	}
	metrics.RecordMerge(rec.Source)
	return nil
}

func (p *Pipeline) pace(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}
	return nil
}

var _ Extractor = (*extract.Engine)(nil)
