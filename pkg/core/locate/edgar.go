package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"finresearch/pkg/core/fetch"
)

const (
	defaultSubmissionsBase = "https://data.sec.gov/submissions"
	defaultTickerDirectory = "https://www.sec.gov/files/company_tickers.json"
	defaultArchivesBase    = "https://www.sec.gov/Archives/edgar/data"
)

// The two form categories that represent quarterly and annual reports.
var reportForms = map[string]bool{
	"10-Q": true,
	"10-K": true,
}

// EDGARSource discovers the most recent quarterly or annual filing for a
// US symbol via the EDGAR submissions feed. The ticker directory is loaded
// once and cached in memory for the lifetime of the source.
type EDGARSource struct {
	client          *fetch.Client
	submissionsBase string
	tickerDirectory string
	archivesBase    string
	logger          zerolog.Logger

	tickerMu    sync.RWMutex
	tickerToCIK map[string]string
}

// EDGAROption configures an EDGARSource.
type EDGAROption func(*EDGARSource)

// WithEndpoints overrides the EDGAR endpoints, primarily for tests.
func WithEndpoints(submissionsBase, tickerDirectory, archivesBase string) EDGAROption {
	return func(s *EDGARSource) {
		s.submissionsBase = strings.TrimRight(submissionsBase, "/")
		s.tickerDirectory = tickerDirectory
		s.archivesBase = strings.TrimRight(archivesBase, "/")
	}
}

// WithEDGARLogger attaches a logger.
func WithEDGARLogger(l zerolog.Logger) EDGAROption {
	return func(s *EDGARSource) { s.logger = l }
}

// NewEDGARSource builds a source backed by the given fetch client.
func NewEDGARSource(client *fetch.Client, opts ...EDGAROption) *EDGARSource {
	s := &EDGARSource{
		client:          client,
		submissionsBase: defaultSubmissionsBase,
		tickerDirectory: defaultTickerDirectory,
		archivesBase:    defaultArchivesBase,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tickerEntry matches the company_tickers.json directory format, keyed by
// arbitrary index: {"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}.
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// submissionsResponse matches the submissions feed: filings.recent holds
// parallel arrays indexed together.
type submissionsResponse struct {
	Name    string `json:"name"`
	Filings struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

type recentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

type feedEntry struct {
	AccessionNumber string
	FilingDate      string
	Form            string
}

// LatestFiling returns metadata for the most recent 10-Q or 10-K of the
// symbol. The returned URL is the filing's index page; resolving it to the
// primary document is the resolver's job.
func (s *EDGARSource) LatestFiling(ctx context.Context, symbol string) (FilingMetadata, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return FilingMetadata{}, fmt.Errorf("%w: empty symbol", ErrSymbolNotFound)
	}

	cik, err := s.lookupCIK(ctx, symbol)
	if err != nil {
		return FilingMetadata{}, err
	}

	subs, err := s.fetchSubmissions(ctx, symbol, cik)
	if err != nil {
		return FilingMetadata{}, err
	}

	entry, ok := latestReportEntry(subs.Filings.Recent)
	if !ok {
		return FilingMetadata{}, fmt.Errorf("%w for %s: the feed returned no 10-Q or 10-K entries", ErrNoFilings, symbol)
	}

	title := entry.Form
	if subs.Name != "" {
		title = subs.Name + " " + entry.Form
	}

	s.logger.Debug().
		Str("symbol", symbol).
		Str("cik", cik).
		Str("form", entry.Form).
		Str("filing_date", entry.FilingDate).
		Msg("located latest filing")

	return FilingMetadata{
		Symbol: symbol,
		Market: MarketUS,
		Title:  title,
		Date:   entry.FilingDate,
		URL:    s.filingIndexURL(cik, entry.AccessionNumber),
		Source: SourceEDGAR,
	}, nil
}

// lookupCIK resolves a ticker through the cached directory, loading it on
// first use.
func (s *EDGARSource) lookupCIK(ctx context.Context, symbol string) (string, error) {
	s.tickerMu.RLock()
	cik, ok := s.tickerToCIK[symbol]
	s.tickerMu.RUnlock()
	if ok {
		return cik, nil
	}

	res := s.client.Fetch(ctx, s.tickerDirectory)
	if !res.OK() {
		return "", fmt.Errorf("%w: ticker directory: %v", ErrFeedUnreachable, res.Err)
	}

	var entries map[string]tickerEntry
	if err := json.Unmarshal(res.Body, &entries); err != nil {
		return "", fmt.Errorf("%w: ticker directory returned malformed JSON: %v", ErrFeedUnreachable, err)
	}

	table := make(map[string]string, len(entries))
	for _, e := range entries {
		table[strings.ToUpper(e.Ticker)] = padCIK(e.CIK)
	}

	s.tickerMu.Lock()
	s.tickerToCIK = table
	s.tickerMu.Unlock()

	cik, ok = table[symbol]
	if !ok {
		return "", fmt.Errorf("%w: %s is not listed in the EDGAR ticker directory", ErrSymbolNotFound, symbol)
	}
	return cik, nil
}

func (s *EDGARSource) fetchSubmissions(ctx context.Context, symbol, cik string) (*submissionsResponse, error) {
	url := fmt.Sprintf("%s/CIK%s.json", s.submissionsBase, cik)
	res := s.client.Fetch(ctx, url)
	if !res.OK() {
		if res.Status == fetch.StatusHTTPError && res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: no submissions feed for %s (CIK %s)", ErrSymbolNotFound, symbol, cik)
		}
		return nil, fmt.Errorf("%w: submissions feed: %v", ErrFeedUnreachable, res.Err)
	}

	var subs submissionsResponse
	if err := json.Unmarshal(res.Body, &subs); err != nil {
		return nil, fmt.Errorf("%w: submissions feed returned malformed JSON: %v", ErrFeedUnreachable, err)
	}
	return &subs, nil
}

// latestReportEntry filters the parallel arrays down to report forms and
// picks the most recent by filing date. Dates compare lexically (they are
// YYYY-MM-DD); a strict greater-than keeps the first feed occurrence on ties.
func latestReportEntry(recent recentFilings) (feedEntry, bool) {
	var best feedEntry
	found := false
	for i, form := range recent.Form {
		if !reportForms[form] {
			continue
		}
		if i >= len(recent.AccessionNumber) || i >= len(recent.FilingDate) {
			break
		}
		entry := feedEntry{
			AccessionNumber: recent.AccessionNumber[i],
			FilingDate:      recent.FilingDate[i],
			Form:            form,
		}
		if !found || entry.FilingDate > best.FilingDate {
			best = entry
			found = true
		}
	}
	return best, found
}

// filingIndexURL builds the canonical index page for an accession, e.g.
// …/edgar/data/320193/000032019324000123/0000320193-24-000123-index.htm
func (s *EDGARSource) filingIndexURL(cik, accession string) string {
	cikTrimmed := strings.TrimLeft(cik, "0")
	noDashes := strings.ReplaceAll(accession, "-", "")
	return fmt.Sprintf("%s/%s/%s/%s-index.htm", s.archivesBase, cikTrimmed, noDashes, accession)
}

// padCIK zero-pads a numeric CIK to the 10 digits the submissions feed
// expects.
func padCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}
