package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

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
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env not found, using environment variables")
	}

	var (
		target     = flag.String("target", "", "ticker symbol or absolute report URL (required)")
		market     = flag.String("market", "", "market code, US or CN")
		analyze    = flag.Bool("analyze", false, "run the rule-based review over the extracted text")
		save       = flag.Bool("save", false, "render and archive an HTML report (implies -analyze)")
		asJSON     = flag.Bool("json", false, "print the raw outcome as JSON")
		configPath = flag.String("config", "", "config file (.yaml or .hjson)")
		timeout    = flag.Duration("timeout", 3*time.Minute, "overall deadline for the run")
	)
	flag.Parse()
	if *target == "" && flag.NArg() > 0 {
		*target = flag.Arg(0)
	}
	if *target == "" {
		fmt.Fprintln(os.Stderr, "usage: acquire -target AAPL -market US [-analyze] [-save] [-json]")
		os.Exit(2)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *asJSON {
		logger = logger.Level(zerolog.WarnLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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

	mkt := locate.ParseMarket(cfg.DefaultMarket)
	if *market != "" {
		mkt = locate.ParseMarket(*market)
	}

	if !*asJSON {
		fmt.Printf("=== Acquiring %s (%s) ===\n", *target, mkt)
	}
	outcome := orch.Acquire(ctx, *target, mkt)

	var review *analysis.Result
	var reportPath string
	if outcome.OK && (*analyze || *save) {
		r := analysis.NewEngine().Analyze(outcome.Extraction.Text)
		review = &r

		if *save {
			saver := report.NewSaver(report.NewRenderer(), store.NewArchive(cfg.ReportsDir), store.NewReportRepo(store.GetPool()))
			reportPath, err = saver.Save(ctx, *outcome.Metadata, *outcome.Extraction, r)
			if err != nil {
				logger.Fatal().Err(err).Msg("report save failed")
			}
		}
	}

	if *asJSON {
		out := struct {
			pipeline.Outcome
			Review     *analysis.Result `json:"review,omitempty"`
			ReportPath string           `json:"report_path,omitempty"`
		}{outcome, review, reportPath}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else {
		printSummary(outcome, review, reportPath)
	}

	if !outcome.OK {
		os.Exit(1)
	}
}

func printSummary(outcome pipeline.Outcome, review *analysis.Result, reportPath string) {
	if !outcome.OK {
		f := outcome.Failure
		fmt.Printf("FAILED at %s stage (%s): %s\n", f.Stage, f.Kind, f.Message)
		return
	}

	meta := outcome.Metadata
	fmt.Printf("Title:   %s\n", meta.Title)
	if meta.Date != "" {
		fmt.Printf("Date:    %s\n", meta.Date)
	}
	fmt.Printf("Source:  %s\n", meta.Source)
	fmt.Printf("URL:     %s\n", meta.URL)
	fmt.Printf("Content: %s, %d bytes fetched, %d chars extracted\n",
		outcome.Extraction.ContentType, outcome.Extraction.ByteSize, len(outcome.Extraction.Text))

	if review != nil {
		fmt.Println("\n=== Review ===")
		fmt.Println(review.Summary)
		for _, section := range []string{review.Revenue, review.Profitability, review.CashFlow, review.Debt} {
			if section != "" {
				fmt.Println(" -", section)
			}
		}
		for _, note := range review.RiskNotes {
			fmt.Println(" !", note)
		}
	}
	if reportPath != "" {
		fmt.Printf("\nReport archived: %s\n", reportPath)
	}
}
