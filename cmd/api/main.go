package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"finresearch/pkg/api/research"
	"finresearch/pkg/config"
	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/extract"
	"finresearch/pkg/core/extract/pdftext"
	"finresearch/pkg/core/fetch"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/pipeline"
	"finresearch/pkg/core/report"
	"finresearch/pkg/core/resolve"
	"finresearch/pkg/core/store"
	"finresearch/pkg/core/watch"
)

func main() {
	// Load environment variables
	godotenv.Load()

	configPath := flag.String("config", "", "config file (.yaml or .hjson), defaults to config/research.*")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	// Optional persistence. Without DATABASE_URL the API still works; the
	// report endpoint acquires fresh and saves go to the HTML archive only.
	if err := store.InitDB(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()
	if store.Enabled() {
		logger.Info().Msg("database connected")
	} else {
		logger.Info().Msg("DATABASE_URL not set, report persistence disabled")
	}

	// Acquisition pipeline
	fetchOpts := []fetch.Option{fetch.WithLogger(logger)}
	if cfg.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(cfg.UserAgent))
	}
	fetcher := fetch.NewClient(fetchOpts...)
	locator := locate.NewLocator(
		locate.NewEDGARSource(fetcher, locate.WithEDGARLogger(logger)),
		locate.WithLocatorLogger(logger),
	)
	resolver := resolve.NewResolver(fetcher, resolve.WithLogger(logger))
	extractor := extract.New(extract.WithPDFDecoder(pdftext.New()), extract.WithLogger(logger))
	orch := pipeline.NewOrchestrator(locator, resolver, fetcher, extractor)
	orch.SetLogger(logger)

	// Review and persistence
	engine := analysis.NewEngine()
	renderer := report.NewRenderer()
	archive := store.NewArchive(cfg.ReportsDir)
	repo := store.NewReportRepo(store.GetPool())
	saver := report.NewSaver(renderer, archive, repo)

	research.InitHandler(research.Deps{
		Acquirer:      orch,
		Engine:        engine,
		Renderer:      renderer,
		Saver:         saver,
		Repo:          repo,
		DefaultMarket: locate.ParseMarket(cfg.DefaultMarket),
		PDFSupport:    extractor.HasPDFSupport(),
		Logger:        logger,
	})

	// Background refresh of the configured watchlist
	if len(cfg.Watchlist) > 0 {
		entries := make([]watch.Entry, 0, len(cfg.Watchlist))
		for _, item := range cfg.Watchlist {
			entries = append(entries, watch.Entry{Symbol: item.Symbol, Market: locate.ParseMarket(item.Market)})
		}
		watcher := watch.NewWatcher(orch, entries, cfg.WatchSchedule,
			watch.WithLogger(logger),
			watch.WithOutcomeHandler(func(ctx context.Context, entry watch.Entry, outcome pipeline.Outcome) {
				if !outcome.OK {
					return
				}
				review := engine.Analyze(outcome.Extraction.Text)
				if _, err := saver.Save(ctx, *outcome.Metadata, *outcome.Extraction, review); err != nil {
					logger.Warn().Err(err).Str("symbol", entry.Symbol).Msg("scheduled report save failed")
				}
			}),
		)
		if err := watcher.Start(); err != nil {
			logger.Error().Err(err).Msg("watch scheduler not started")
		} else {
			defer watcher.Stop()
		}
	}

	// Research endpoints
	http.HandleFunc("/api/research/acquire", research.HandleAcquire)
	http.HandleFunc("/api/research/analyze", research.HandleAnalyze)
	http.HandleFunc("/api/research/report", research.HandleReport)
	http.HandleFunc("/api/health", research.HandleHealth)

	fmt.Printf("API server starting on %s...\n", cfg.Addr())
	fmt.Println("  - POST /api/research/acquire")
	fmt.Println("  - POST /api/research/analyze")
	fmt.Println("  - GET  /api/research/report")
	fmt.Println("  - GET  /api/health")

	if err := http.ListenAndServe(cfg.Addr(), nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
