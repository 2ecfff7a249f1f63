package mcp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/report"
)

const (
	reportScheme = "report://"
	usageURI     = "finresearch://docs/usage"
)

// ResourceNotFoundError is returned for unknown resource URIs.
type ResourceNotFoundError struct {
	URI string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URI)
}

// listResources returns the static usage doc plus one entry per stored
// report when the database is available.
func (s *Server) listResources(ctx context.Context) []ResourceListItem {
	items := []ResourceListItem{
		{
			URI:         usageURI,
			Name:        "FinResearch Tool Reference",
			Description: "List of MCP tools and when to use them",
			MimeType:    "text/plain",
		},
	}

	if s.deps.Repo == nil || !s.deps.Repo.Enabled() {
		return items
	}
	records, err := s.deps.Repo.List(ctx, 20)
	if err != nil {
		s.deps.Logger.Warn().Err(err).Msg("failed to list stored reports")
		return items
	}
	for _, rec := range records {
		items = append(items, ResourceListItem{
			URI:         reportScheme + rec.Metadata.Symbol + "?market=" + url.QueryEscape(string(rec.Metadata.Market)),
			Name:        rec.Metadata.Title,
			Description: fmt.Sprintf("Stored report for %s (%s)", rec.Metadata.Symbol, rec.Metadata.Date),
			MimeType:    "text/markdown",
		})
	}
	return items
}

// readResource resolves a resource URI. report://{symbol} prefers the
// stored database record and falls back to the newest archived HTML page.
func (s *Server) readResource(ctx context.Context, uri string) ([]ResourceContent, error) {
	if uri == usageURI {
		return []ResourceContent{{URI: uri, MimeType: "text/plain", Text: staticUsage}}, nil
	}
	if !strings.HasPrefix(uri, reportScheme) {
		return nil, &ResourceNotFoundError{URI: uri}
	}

	rest := strings.TrimPrefix(uri, reportScheme)
	market := s.deps.DefaultMarket
	symbol := rest
	if i := strings.Index(rest, "?"); i >= 0 {
		symbol = rest[:i]
		if query, err := url.ParseQuery(rest[i+1:]); err == nil && query.Get("market") != "" {
			market = locate.ParseMarket(query.Get("market"))
		}
	}
	symbol = strings.Trim(symbol, "/")
	if symbol == "" || strings.Contains(symbol, "..") {
		return nil, &ResourceNotFoundError{URI: uri}
	}

	if s.deps.Repo != nil {
		if rec, err := s.deps.Repo.Latest(ctx, symbol, market); err == nil {
			md := s.deps.Renderer.BuildMarkdown(report.PageFromRecord(rec))
			return []ResourceContent{{URI: uri, MimeType: "text/markdown", Text: md}}, nil
		}
	}

	if s.deps.Archive != nil {
		paths, err := s.deps.Archive.List(symbol)
		if err == nil && len(paths) > 0 {
			data, readErr := os.ReadFile(paths[0])
			if readErr == nil {
				return []ResourceContent{{URI: uri, MimeType: "text/html", Text: string(data)}}, nil
			}
		}
	}

	return nil, &ResourceNotFoundError{URI: uri}
}

const staticUsage = `fetch_latest_report: Locate the newest 10-Q/10-K filing for a symbol (symbol, optional market US|CN). Returns metadata with the document URL. extract_report_text: Download a report or filing index URL and extract plain text (url). analyze_text: Rule-based financial health review over pasted text (text); Chinese reports are detected automatically. analyze_symbol: Full flow for a symbol: locate, download, extract, review; set save=true to archive an HTML report page. Resources: report://{symbol}?market=US returns the stored report as markdown, falling back to the newest archived HTML page.`
