// Package cmd defines the CLI commands for the noticecrawler executable.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	archivepg "github.com/contractwatch/noticecrawler/internal/archive/postgres"
	"github.com/contractwatch/noticecrawler/internal/clock/system"
	"github.com/contractwatch/noticecrawler/internal/config"
	"github.com/contractwatch/noticecrawler/internal/discovery"
	"github.com/contractwatch/noticecrawler/internal/extract"
	"github.com/contractwatch/noticecrawler/internal/fetch"
	"github.com/contractwatch/noticecrawler/internal/hash/sha256"
	"github.com/contractwatch/noticecrawler/internal/id/uuid"
	"github.com/contractwatch/noticecrawler/internal/logging"
	"github.com/contractwatch/noticecrawler/internal/metrics"
	"github.com/contractwatch/noticecrawler/internal/notice"
	"github.com/contractwatch/noticecrawler/internal/pipeline"
	registrypg "github.com/contractwatch/noticecrawler/internal/registry/postgres"
)

var (
	cfgFile     string
	metricsAddr string
)

// appKeyType keys the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles the wired services a job command needs.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	archive   *archivepg.Archive
	registry  *registrypg.Registry
	discovery *discovery.Discovery
	pipeline  *pipeline.Pipeline
}

func (a *app) close() {
	if a.archive != nil {
		a.archive.Close()
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newApp is the application factory, a variable so tests can swap in a
// fake.
var newApp = func(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required (set NOTICECRAWLER_DB_DSN or db.dsn in config)")
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	clock := system.New()
	archive, err := archivepg.New(ctx, archivepg.Config{
		DSN:   cfg.DB.DSN,
		Table: cfg.DB.ArchiveTable,
	}, uuid.NewGenerator(), sha256.New(), clock)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	registry, err := registrypg.New(ctx, registrypg.Config{
		DSN:           cfg.DB.DSN,
		Table:         cfg.DB.RegistryTable,
		DefaultRegion: cfg.Source.RegionCode,
	}, clock)
	if err != nil {
		archive.Close()
		return nil, fmt.Errorf("init registry: %w", err)
	}

	disc, err := discovery.New(discovery.Config{
		Source:     cfg.Source.Tag,
		BaseURL:    cfg.Source.BaseURL,
		PerPageCap: cfg.Pipeline.PerPageCap,
	}, registry, archive, logger)
	if err != nil {
		return nil, fmt.Errorf("init discovery: %w", err)
	}

	fetcher, err := fetch.New(fetch.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, archive, logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	engine := extract.New(extract.Config{
		BuyerCountry: cfg.Source.BuyerCountry,
		Currency:     cfg.Source.Currency,
		RegionCode:   cfg.Source.RegionCode,
	})

	pipe, err := pipeline.New(pipeline.Config{
		Source: cfg.Source.Tag,
		Pacing: cfg.Pacing(),
	}, disc, fetcher, archive, registry, engine, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		archive:   archive,
		registry:  registry,
		discovery: disc,
		pipeline:  pipe,
	}
	if metricsAddr != "" {
		a.serveMetrics(metricsAddr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "noticecrawler",
		Short: "Discovers, archives, and extracts public procurement notices.",
		Long: `noticecrawler walks a procurement portal's search results, archives
every fetched page verbatim, and extracts structured notice fields from
the archived copies. Discovery, detail backfill, and extraction run as
separate batch jobs so each stage can be retried or replayed on its own.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newBackfillCmd())
	cmd.AddCommand(newExtractCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

func logReport(logger *zap.Logger, job string, report notice.Report) {
	logger.Info("job finished",
		zap.String("job", job),
		zap.Int("seen", report.Seen),
		zap.Int("processed", report.Processed),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
