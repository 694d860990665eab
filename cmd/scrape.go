package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"firmscout/internal/api"
	"firmscout/internal/census"
	"firmscout/internal/config"
	"firmscout/internal/contact"
	"firmscout/internal/export"
	"firmscout/internal/fetch"
	"firmscout/internal/logging"
	"firmscout/internal/pipeline"
	"firmscout/internal/progress"
	"firmscout/internal/progress/sinks"
	"firmscout/internal/scout"
	"firmscout/internal/sources"
)

const exportTimeout = 30 * time.Second

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Runs a full scrape and exports the results",
		Long: `Resolves the working location set, fans out over the configured listing
sources, enriches every surviving posting with contact details, and writes
the records to the configured export sink. An interrupted run exports the
records collected so far.`,
		RunE: runScrape,
	}
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	fetcher, err := fetch.New(fetch.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.RequestTimeout(),
		PerDomainRPS: cfg.HTTP.PerDomainRPS,
	}, logger.Named("fetch"))
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	pageFetcher, cleanup, err := buildPageFetcher(cfg, fetcher, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	locations, err := buildLocationProvider(cfg, pageFetcher, logger).Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve locations: %w", err)
	}
	logger.Info("resolved locations", zap.Int("count", len(locations)))

	reg := sources.NewRegistry()
	reg.Register(sources.NewArchinect(pageFetcher, logger.Named("archinect")))
	reg.Register(sources.NewAIA(pageFetcher, logger.Named("aia")))

	if cfg.Metrics.Port > 0 {
		srv := api.NewServer(cfg.Metrics.Port, registry, logger.Named("api"))
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	pipe := pipeline.New(reg, contact.New(pageFetcher, logger.Named("contact")), pipeline.Options{
		Emitter:            hub,
		Logger:             logger.Named("pipeline"),
		SourceConcurrency:  cfg.Scrape.SourceConcurrency,
		ContactConcurrency: cfg.Scrape.ContactConcurrency,
	})
	records, runErr := pipe.Run(ctx, locations)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run scrape: %w", runErr)
	}
	if runErr != nil {
		logger.Warn("scrape interrupted, exporting partial results", zap.Int("records", len(records)))
	}

	exporter, err := export.New(cfg.Export, logger.Named("export"))
	if err != nil {
		return err
	}
	// Export on a fresh context so an interrupt does not also abort the write.
	exportCtx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()
	if err := exporter.Export(exportCtx, records); err != nil {
		return fmt.Errorf("export records: %w", err)
	}

	logger.Info("scrape finished", zap.Int("records", len(records)))
	return nil
}

func buildPageFetcher(cfg config.Config, plain *fetch.Fetcher, logger *zap.Logger) (scout.PageFetcher, func(), error) {
	if !cfg.Render.Enabled {
		return plain, func() {}, nil
	}
	renderer, err := fetch.NewRenderer(fetch.RendererConfig{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.RenderTimeout(),
		MaxParallel: cfg.Render.MaxParallel,
	}, logger.Named("render"))
	switch {
	case err == nil:
		fetcher := fetch.NewRenderingFetcher(plain, renderer, cfg.Render.MinHTMLBytes, logger.Named("fetch"))
		return fetcher, renderer.Close, nil
	case errors.Is(err, fetch.ErrRendererDisabled):
		logger.Warn("rendering enabled but unavailable, using plain fetches")
		return plain, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("init renderer: %w", err)
	}
}

func buildLocationProvider(cfg config.Config, fetcher scout.PageFetcher, logger *zap.Logger) scout.LocationProvider {
	if static := cfg.StaticLocations(); len(static) > 0 {
		logger.Info("using static locations", zap.Int("count", len(static)))
		return census.NewStaticProvider(static)
	}
	return census.NewProvider(census.Config{
		BaseURL:       cfg.Census.BaseURL,
		Vintages:      cfg.Census.Vintages,
		MaxPopulation: cfg.Census.MaxPopulation,
		APIKey:        cfg.Census.APIKey,
	}, fetcher, logger.Named("census"))
}
