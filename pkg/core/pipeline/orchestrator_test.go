package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"finresearch/pkg/core/extract"
	"finresearch/pkg/core/fetch"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/resolve"
)

// --- Mocks ---

type MockLocator struct {
	LocateFunc func(ctx context.Context, symbol string, market locate.Market) (locate.FilingMetadata, error)
	calls      int
}

func (m *MockLocator) Locate(ctx context.Context, symbol string, market locate.Market) (locate.FilingMetadata, error) {
	m.calls++
	if m.LocateFunc != nil {
		return m.LocateFunc(ctx, symbol, market)
	}
	return locate.FilingMetadata{
		Symbol: symbol,
		Market: market,
		Title:  "Apple Inc. 10-Q",
		Date:   "2024-09-30",
		URL:    "https://edgar.test/0000320193-24-000081-index.htm",
		Source: locate.SourceEDGAR,
	}, nil
}

type MockResolver struct {
	ResolveFunc func(ctx context.Context, url string) (resolve.Resolution, error)
}

func (m *MockResolver) Resolve(ctx context.Context, url string) (resolve.Resolution, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, url)
	}
	return resolve.Resolution{URL: "https://edgar.test/aapl-20240930.htm"}, nil
}

type MockFetcher struct {
	FetchFunc func(ctx context.Context, url string) fetch.Result
	calls     []string
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) fetch.Result {
	m.calls = append(m.calls, url)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return fetch.Result{
		Status:      fetch.StatusSuccess,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte("<html><body><p>Revenue grew 12% year over year.</p></body></html>"),
		FinalURL:    url,
	}
}

// --- Tests ---

func TestAcquire_Scenarios(t *testing.T) {
	pdfPayload := fetch.Result{
		Status:      fetch.StatusSuccess,
		StatusCode:  200,
		ContentType: "application/pdf",
		Body:        []byte("%PDF-1.7 fake body"),
		FinalURL:    "https://example.com/annual.pdf",
	}

	type testCase struct {
		name        string
		target      string
		market      locate.Market
		setupMocks  func(*MockLocator, *MockResolver, *MockFetcher)
		wantOK      bool
		wantStage   Stage
		wantKind    Kind
		wantMessage string // substring match
		verify      func(t *testing.T, out Outcome, loc *MockLocator, f *MockFetcher)
	}

	tests := []testCase{
		{
			name:       "Success - Symbol Through Index Page",
			target:     "AAPL",
			market:     locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {},
			wantOK:     true,
			verify: func(t *testing.T, out Outcome, loc *MockLocator, f *MockFetcher) {
				if out.Metadata == nil || out.Metadata.Title != "Apple Inc. 10-Q" {
					t.Fatalf("expected located metadata, got %+v", out.Metadata)
				}
				if out.Extraction == nil || !strings.Contains(out.Extraction.Text, "Revenue grew 12%") {
					t.Fatalf("expected extracted text, got %+v", out.Extraction)
				}
				if len(f.calls) != 1 || f.calls[0] != "https://edgar.test/aapl-20240930.htm" {
					t.Errorf("expected one fetch of the resolved document, got %v", f.calls)
				}
			},
		},
		{
			name:   "Success - Direct URL Skips Discovery",
			target: "https://example.com/report.htm",
			market: locate.MarketCN,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				r.ResolveFunc = func(ctx context.Context, url string) (resolve.Resolution, error) {
					return resolve.Resolution{URL: url}, nil
				}
			},
			wantOK: true,
			verify: func(t *testing.T, out Outcome, loc *MockLocator, f *MockFetcher) {
				if loc.calls != 0 {
					t.Errorf("expected locator to be skipped for a direct URL, got %d calls", loc.calls)
				}
				if out.Metadata.Symbol != "N/A" || out.Metadata.Source != locate.SourceDirectURL {
					t.Errorf("expected direct-url metadata, got %+v", out.Metadata)
				}
				if out.Metadata.Title != "Direct Report URL" {
					t.Errorf("expected placeholder title, got %q", out.Metadata.Title)
				}
			},
		},
		{
			name:   "Success - Terminal Payload Reused Without Refetch",
			target: "AAPL",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				payload := fetch.Result{
					Status:      fetch.StatusSuccess,
					StatusCode:  200,
					ContentType: "text/html",
					Body:        []byte("<html><body>Terminal document body.</body></html>"),
					FinalURL:    "https://edgar.test/final.htm",
				}
				r.ResolveFunc = func(ctx context.Context, url string) (resolve.Resolution, error) {
					return resolve.Resolution{URL: "https://edgar.test/final.htm", Terminal: true, Payload: &payload}, nil
				}
			},
			wantOK: true,
			verify: func(t *testing.T, out Outcome, loc *MockLocator, f *MockFetcher) {
				if len(f.calls) != 0 {
					t.Errorf("expected no extra fetch for a terminal resolution, got %v", f.calls)
				}
				if !strings.Contains(out.Extraction.Text, "Terminal document body.") {
					t.Errorf("expected terminal payload text, got %q", out.Extraction.Text)
				}
			},
		},
		{
			name:   "Locate - Unknown US Symbol",
			target: "INVALID",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				l.LocateFunc = func(ctx context.Context, symbol string, market locate.Market) (locate.FilingMetadata, error) {
					return locate.FilingMetadata{}, fmt.Errorf("%w for %s: the feed returned no 10-Q or 10-K entries", locate.ErrNoFilings, symbol)
				}
			},
			wantStage:   StageLocate,
			wantKind:    KindNotFound,
			wantMessage: "no recent filings found",
		},
		{
			name:   "Locate - CN Market Placeholder",
			target: "600143",
			market: locate.MarketCN,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				l.LocateFunc = func(ctx context.Context, symbol string, market locate.Market) (locate.FilingMetadata, error) {
					return locate.FilingMetadata{}, fmt.Errorf("%w: CN filing discovery is not available for %s; supply a direct report URL instead", locate.ErrMarketUnsupported, symbol)
				}
			},
			wantStage:   StageLocate,
			wantKind:    KindUnsupportedMarket,
			wantMessage: "supply a direct report URL",
			verify: func(t *testing.T, out Outcome, loc *MockLocator, f *MockFetcher) {
				if strings.Contains(out.Failure.Message, "no recent filings found") {
					t.Errorf("CN placeholder message should not look like a not-found failure: %q", out.Failure.Message)
				}
			},
		},
		{
			name:   "Locate - Feed Unreachable",
			target: "AAPL",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				l.LocateFunc = func(ctx context.Context, symbol string, market locate.Market) (locate.FilingMetadata, error) {
					return locate.FilingMetadata{}, locate.ErrFeedUnreachable
				}
			},
			wantStage:   StageLocate,
			wantKind:    KindUnreachable,
			wantMessage: "unreachable",
		},
		{
			name:   "Resolve - No Candidate Documents",
			target: "AAPL",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				r.ResolveFunc = func(ctx context.Context, url string) (resolve.Resolution, error) {
					return resolve.Resolution{}, fmt.Errorf("%w at %s", resolve.ErrNoCandidate, url)
				}
			},
			wantStage:   StageResolve,
			wantKind:    KindUnresolvable,
			wantMessage: "no candidate document",
			verify: func(t *testing.T, out Outcome, loc *MockLocator, f *MockFetcher) {
				if out.Metadata == nil {
					t.Error("expected metadata from the locate stage to be preserved")
				}
			},
		},
		{
			name:   "Fetch - HTTP Error Surfaced With Status",
			target: "AAPL",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				f.FetchFunc = func(ctx context.Context, url string) fetch.Result {
					return fetch.Result{Status: fetch.StatusHTTPError, StatusCode: 503, FinalURL: url}
				}
			},
			wantStage:   StageFetch,
			wantKind:    KindHTTPError,
			wantMessage: "HTTP 503",
		},
		{
			name:   "Fetch - Network Error",
			target: "AAPL",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				f.FetchFunc = func(ctx context.Context, url string) fetch.Result {
					return fetch.Result{Status: fetch.StatusNetworkError, Err: fmt.Errorf("connection refused"), FinalURL: url}
				}
			},
			wantStage:   StageFetch,
			wantKind:    KindUnreachable,
			wantMessage: "connection refused",
		},
		{
			name:   "Extract - PDF Without Decoder",
			target: "https://example.com/annual.pdf",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				r.ResolveFunc = func(ctx context.Context, url string) (resolve.Resolution, error) {
					return resolve.Resolution{URL: url, Terminal: true, Payload: &pdfPayload}, nil
				}
			},
			wantStage:   StageExtract,
			wantKind:    KindUnsupportedContent,
			wantMessage: "PDF support is not configured",
			verify: func(t *testing.T, out Outcome, loc *MockLocator, f *MockFetcher) {
				if out.Extraction == nil || out.Extraction.Reason != extract.ReasonMissingPDFDecoder {
					t.Errorf("expected the extraction result to carry the missing decoder reason, got %+v", out.Extraction)
				}
			},
		},
		{
			name:   "Extract - Text-Free Document",
			target: "AAPL",
			market: locate.MarketUS,
			setupMocks: func(l *MockLocator, r *MockResolver, f *MockFetcher) {
				f.FetchFunc = func(ctx context.Context, url string) fetch.Result {
					return fetch.Result{
						Status:      fetch.StatusSuccess,
						StatusCode:  200,
						ContentType: "text/html",
						Body:        []byte("<html><body><script>x()</script></body></html>"),
						FinalURL:    url,
					}
				}
			},
			wantStage:   StageExtract,
			wantKind:    KindMalformedDocument,
			wantMessage: "no extractable text",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			locator := &MockLocator{}
			resolver := &MockResolver{}
			fetcher := &MockFetcher{}

			tc.setupMocks(locator, resolver, fetcher)

			orch := NewOrchestrator(locator, resolver, fetcher, extract.New())
			out := orch.Acquire(context.Background(), tc.target, tc.market)

			if out.OK != tc.wantOK {
				t.Fatalf("expected OK=%v, got %+v", tc.wantOK, out)
			}
			if !tc.wantOK {
				if out.Failure == nil {
					t.Fatal("expected a failure on a non-OK outcome")
				}
				if out.Failure.Stage != tc.wantStage {
					t.Errorf("expected stage %q, got %q", tc.wantStage, out.Failure.Stage)
				}
				if out.Failure.Kind != tc.wantKind {
					t.Errorf("expected kind %q, got %q", tc.wantKind, out.Failure.Kind)
				}
				if !strings.Contains(out.Failure.Message, tc.wantMessage) {
					t.Errorf("expected message containing %q, got %q", tc.wantMessage, out.Failure.Message)
				}
			}
			if tc.verify != nil {
				tc.verify(t, out, locator, fetcher)
			}
		})
	}
}

func TestAcquire_EmptyMarketDefaultsToCN(t *testing.T) {
	var seen locate.Market
	locator := &MockLocator{
		LocateFunc: func(ctx context.Context, symbol string, market locate.Market) (locate.FilingMetadata, error) {
			seen = market
			return locate.FilingMetadata{}, locate.ErrMarketUnsupported
		},
	}
	orch := NewOrchestrator(locator, &MockResolver{}, &MockFetcher{}, extract.New())

	orch.Acquire(context.Background(), "600143", "")
	if seen != locate.DefaultMarket {
		t.Errorf("locator saw market %q, want the %q default", seen, locate.DefaultMarket)
	}
}

func TestFailure_Error(t *testing.T) {
	f := Failure{Stage: StageFetch, Kind: KindHTTPError, Message: "document request for x returned HTTP 503"}
	want := "fetch failed (http_error): document request for x returned HTTP 503"
	if f.Error() != want {
		t.Errorf("expected %q, got %q", want, f.Error())
	}
}
