// Package fetch performs single fetch-and-archive operations using the
// Colly collector.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/contractwatch/noticecrawler/internal/metrics"
	"github.com/contractwatch/noticecrawler/internal/notice"
)

// Config controls collector behavior. Pacing between requests is the
// orchestrator's responsibility, not the fetcher's.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements notice.Fetcher: one HTTP GET composed with an
// archive write. Non-2xx responses are archived as-is and reported to
// the caller rather than raised.
type Fetcher struct {
	cfg           Config
	archive       notice.Archive
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, archive notice.Archive, logger *zap.Logger) (*Fetcher, error) {
	if archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		archive:       archive,
		baseCollector: c,
		logger:        logger,
	}, nil
}

// FetchAndArchive retrieves a document and archives whatever came back,
// including error bodies. The returned error is non-nil only for
// transport failures with no response, or for archive write failures.
func (f *Fetcher) FetchAndArchive(ctx context.Context, kind, source, sourceID, url string) (notice.FetchResult, error) {
	var (
		statusCode int
		body       []byte
		mime       string
	)

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = false

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
		mime = r.Headers.Get("Content-Type")
	})
	// Colly reports non-2xx statuses through OnError with the response
	// attached; those still get archived.
	var transportErr error
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			statusCode = r.StatusCode
			body = append([]byte(nil), r.Body...)
			mime = r.Headers.Get("Content-Type")
			return
		}
		transportErr = err
	})

	if err := f.visit(ctx, collector, url); err != nil {
		return notice.FetchResult{}, err
	}
	if transportErr != nil {
		return notice.FetchResult{}, fmt.Errorf("fetch %s: %w", url, transportErr)
	}
	if statusCode == 0 {
		return notice.FetchResult{}, fmt.Errorf("fetch %s: no response", url)
	}
	if mime == "" {
		mime = "text/html"
	}

	archiveID, err := f.archive.Put(ctx, source, sourceID, url, kind, mime, statusCode, body)
	if err != nil {
		return notice.FetchResult{}, fmt.Errorf("archive %s: %w", url, err)
	}
	metrics.RecordPageFetched(source, kind, metrics.StatusClass(statusCode))

	f.logger.Debug("fetched and archived",
		zap.String("url", url),
		zap.String("kind", kind),
		zap.Int("status", statusCode),
		zap.String("archive_id", archiveID),
	)
	return notice.FetchResult{ArchiveID: archiveID, StatusCode: statusCode, Body: body}, nil
}

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case <-done:
		// Visit returns an error for non-2xx statuses too; the OnError
		// hook has already captured those, and transport failures are
		// surfaced by the caller via transportErr.
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
