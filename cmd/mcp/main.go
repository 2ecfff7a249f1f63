package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

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
	"finresearch/pkg/mcp"
)

func main() {
	// Only protocol JSON may go to stdout; all logging goes to stderr.
	godotenv.Load()

	configPath := flag.String("config", "", "config file (.yaml or .hjson), defaults to config/research.*")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.InitDB(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

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

	renderer := report.NewRenderer()
	archive := store.NewArchive(cfg.ReportsDir)
	repo := store.NewReportRepo(store.GetPool())

	server := mcp.NewServer(mcp.Deps{
		Locator:       locator,
		Acquirer:      orch,
		Engine:        analysis.NewEngine(),
		Renderer:      renderer,
		Saver:         report.NewSaver(renderer, archive, repo),
		Repo:          repo,
		Archive:       archive,
		DefaultMarket: locate.ParseMarket(cfg.DefaultMarket),
		Logger:        logger,
	})

	logger.Info().Msg("MCP server listening on stdio")
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("MCP server terminated")
	}
}
