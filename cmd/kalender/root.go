package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kulturkalender/kulturkalender/internal/config"
	"github.com/kulturkalender/kulturkalender/internal/enrich"
	"github.com/kulturkalender/kulturkalender/internal/logging"
	"github.com/kulturkalender/kulturkalender/internal/metrics"
	"github.com/kulturkalender/kulturkalender/internal/pipeline"
	"github.com/kulturkalender/kulturkalender/internal/resolve"
	"github.com/kulturkalender/kulturkalender/internal/store"
)

// app carries the wired components behind every subcommand. Commands build
// it lazily so `kalender --help` works without a config file.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	client *http.Client
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store.New(cfg.DataDir, logger),
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *app) resolver() *resolve.Resolver {
	return resolve.NewResolver(a.store, a.cfg.Resolve, a.logger)
}

// enrichmentChain wires the configured providers, or returns nil when both
// passes are disabled.
func (a *app) enrichmentChain() (*enrich.Chain, error) {
	var ocrProvider enrich.OCRProvider
	var ocrThrottle *enrich.Throttle
	if a.cfg.Enrichment.OCR.Enabled {
		ocrThrottle = enrich.NewThrottle(a.cfg.Enrichment.Throttle)
		ocrProvider = enrich.NewHTTPOCRProvider(a.cfg.Enrichment.OCR, a.client, a.logger, ocrThrottle.Session)
	}

	var aiProvider enrich.AIProvider
	var aiThrottle *enrich.Throttle
	if a.cfg.Enrichment.AI.Enabled {
		extractor, err := enrich.NewOpenAIExtractor(a.cfg.Enrichment.AI, a.logger)
		if err != nil {
			return nil, fmt.Errorf("enrichment: %w", err)
		}
		aiProvider = extractor
		aiThrottle = enrich.NewThrottle(a.cfg.Enrichment.Throttle)
	}

	if ocrProvider == nil && aiProvider == nil {
		return nil, nil
	}
	return enrich.NewChain(ocrProvider, aiProvider, ocrThrottle, aiThrottle, a.client, a.logger), nil
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	chain, err := a.enrichmentChain()
	if err != nil {
		return nil, err
	}
	collector, err := metrics.NewPipelineCollector()
	if err != nil {
		return nil, err
	}
	return pipeline.New(&a.cfg, a.store, chain, a.resolver(), collector, a.client, a.logger), nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "kalender",
		Short:         "Community event calendar scraper and editorial queue",
		Long: `kalender collects event announcements from configured feeds, listing
pages, JSON APIs and social accounts, stages them in an editorial queue and
maintains the published calendar with its venue and organizer registries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")

	root.AddCommand(
		newScrapeCmd(&configPath),
		newPendingCmd(&configPath),
		newArchiveCmd(&configPath),
		newRegistryCmd(&configPath),
		newVerifyCmd(&configPath),
		newWatchCmd(&configPath),
	)
	return root
}
