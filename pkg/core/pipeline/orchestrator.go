// Package pipeline chains filing discovery, document resolution, content
// retrieval and text extraction into a single acquisition flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finresearch/pkg/core/extract"
	"finresearch/pkg/core/fetch"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/resolve"

	"github.com/rs/zerolog"
)

// Stage names the pipeline step a failure occurred in.
type Stage string

const (
	StageLocate  Stage = "locate"
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
)

// Kind classifies a failure independent of its stage.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindUnreachable        Kind = "unreachable"
	KindHTTPError          Kind = "http_error"
	KindUnresolvable       Kind = "unresolvable"
	KindUnsupportedContent Kind = "unsupported_content"
	KindMalformedDocument  Kind = "malformed_document"
	KindUnsupportedMarket  Kind = "unsupported_market"
)

// Failure describes why an acquisition stopped and at which stage.
type Failure struct {
	Stage   Stage  `json:"stage"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", f.Stage, f.Kind, f.Message)
}

// Outcome is the result of one acquisition. Metadata is present once the
// locate stage succeeded; Extraction once the extract stage ran.
type Outcome struct {
	OK         bool                   `json:"ok"`
	Metadata   *locate.FilingMetadata `json:"metadata,omitempty"`
	Extraction *extract.Result        `json:"extraction,omitempty"`
	Failure    *Failure               `json:"failure,omitempty"`
}

// FilingLocator maps a symbol to its most recent report filing.
// Implementations may query:
// - Live SEC EDGAR (ticker directory + submissions feed)
// - A stub for markets without an integrated source
type FilingLocator interface {
	Locate(ctx context.Context, symbol string, market locate.Market) (locate.FilingMetadata, error)
}

// DocumentResolver turns an index page URL into the primary document URL.
type DocumentResolver interface {
	Resolve(ctx context.Context, url string) (resolve.Resolution, error)
}

// ContentFetcher retrieves document bytes. The fetch layer owns all
// retry behavior; the orchestrator calls it exactly once per document.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) fetch.Result
}

// TextExtractor converts document bytes to plain text.
type TextExtractor interface {
	Extract(data []byte, contentType string) extract.Result
}

// Orchestrator manages the end-to-end acquisition flow:
// Locate -> Resolve -> Fetch -> Extract, stopping at the first failure.
type Orchestrator struct {
	locator   FilingLocator
	resolver  DocumentResolver
	fetcher   ContentFetcher
	extractor TextExtractor
	logger    zerolog.Logger
}

// NewOrchestrator creates an orchestrator with all required dependencies.
func NewOrchestrator(locator FilingLocator, resolver DocumentResolver, fetcher ContentFetcher, extractor TextExtractor) *Orchestrator {
	return &Orchestrator{
		locator:   locator,
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    zerolog.Nop(),
	}
}

// SetLocator allows injecting a custom locator (e.g., for testing).
func (o *Orchestrator) SetLocator(l FilingLocator) { o.locator = l }

// SetResolver allows injecting a custom resolver (e.g., for testing).
func (o *Orchestrator) SetResolver(r DocumentResolver) { o.resolver = r }

// SetFetcher allows injecting a custom fetcher (e.g., for testing).
func (o *Orchestrator) SetFetcher(f ContentFetcher) { o.fetcher = f }

// SetExtractor allows injecting a custom extractor (e.g., for testing).
func (o *Orchestrator) SetExtractor(e TextExtractor) { o.extractor = e }

// SetLogger attaches a logger.
func (o *Orchestrator) SetLogger(l zerolog.Logger) { o.logger = l }

// Acquire runs the full flow for a symbol or a direct report URL.
// Absolute http(s) targets skip the locate stage entirely.
func (o *Orchestrator) Acquire(ctx context.Context, target string, market locate.Market) Outcome {
	target = strings.TrimSpace(target)
	if market == "" {
		market = locate.DefaultMarket
	}

	// 1. Locate
	var meta locate.FilingMetadata
	if isDirectURL(target) {
		meta = locate.FilingMetadata{
			Symbol: "N/A",
			Market: market,
			Title:  "Direct Report URL",
			URL:    target,
			Source: locate.SourceDirectURL,
		}
		o.logger.Debug().Str("url", target).Msg("direct URL supplied, skipping filing discovery")
	} else {
		located, err := o.locator.Locate(ctx, target, market)
		if err != nil {
			o.logger.Info().Err(err).Str("symbol", target).Str("market", string(market)).Msg("filing discovery failed")
			return failed(StageLocate, classifyLocateError(err), err.Error(), nil, nil)
		}
		meta = located
		o.logger.Debug().Str("symbol", meta.Symbol).Str("title", meta.Title).Str("url", meta.URL).Msg("filing located")
	}

	// 2. Resolve
	resolution, err := o.resolver.Resolve(ctx, meta.URL)
	if err != nil {
		o.logger.Info().Err(err).Str("url", meta.URL).Msg("document resolution failed")
		return failed(StageResolve, classifyResolveError(err), err.Error(), &meta, nil)
	}

	// 3. Fetch (reuse the resolver's payload when it already holds the
	// terminal document, so each document is fetched exactly once)
	var payload fetch.Result
	if resolution.Terminal && resolution.Payload != nil {
		payload = *resolution.Payload
	} else {
		payload = o.fetcher.Fetch(ctx, resolution.URL)
	}
	if !payload.OK() {
		kind := KindUnreachable
		msg := fmt.Sprintf("could not retrieve %s", resolution.URL)
		if payload.Status == fetch.StatusHTTPError {
			kind = KindHTTPError
			msg = fmt.Sprintf("document request for %s returned HTTP %d", resolution.URL, payload.StatusCode)
		} else if payload.Err != nil {
			msg = fmt.Sprintf("could not retrieve %s: %v", resolution.URL, payload.Err)
		}
		o.logger.Info().Str("url", resolution.URL).Str("status", string(payload.Status)).Msg("document fetch failed")
		return failed(StageFetch, kind, msg, &meta, nil)
	}

	// 4. Extract
	result := o.extractor.Extract(payload.Body, payload.ContentType)
	if !result.OK {
		o.logger.Info().Str("url", resolution.URL).Str("reason", string(result.Reason)).Msg("text extraction failed")
		return failed(StageExtract, classifyExtractReason(result.Reason), result.Message, &meta, &result)
	}

	o.logger.Info().Str("symbol", meta.Symbol).Str("url", resolution.URL).Int("bytes", result.ByteSize).Msg("acquisition complete")
	return Outcome{OK: true, Metadata: &meta, Extraction: &result}
}

func failed(stage Stage, kind Kind, msg string, meta *locate.FilingMetadata, res *extract.Result) Outcome {
	return Outcome{
		Metadata:   meta,
		Extraction: res,
		Failure:    &Failure{Stage: stage, Kind: kind, Message: msg},
	}
}

func isDirectURL(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func classifyLocateError(err error) Kind {
	switch {
	case errors.Is(err, locate.ErrSymbolNotFound), errors.Is(err, locate.ErrNoFilings):
		return KindNotFound
	case errors.Is(err, locate.ErrMarketUnsupported):
		return KindUnsupportedMarket
	default:
		return KindUnreachable
	}
}

func classifyResolveError(err error) Kind {
	switch {
	case errors.Is(err, resolve.ErrHTTPStatus):
		return KindHTTPError
	case errors.Is(err, resolve.ErrUnreachable):
		return KindUnreachable
	default:
		return KindUnresolvable
	}
}

func classifyExtractReason(reason extract.Reason) Kind {
	switch reason {
	case extract.ReasonUnsupportedType, extract.ReasonMissingPDFDecoder:
		return KindUnsupportedContent
	default:
		return KindMalformedDocument
	}
}
