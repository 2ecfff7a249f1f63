// Package resolve decides whether a fetched URL is a terminal document or
// an index page, and picks the primary document off index pages using an
// ordered rule list.
package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"finresearch/pkg/core/fetch"
)

var (
	ErrNoCandidate = errors.New("no candidate document on index page")
	ErrUnreachable = errors.New("document unreachable")
	ErrHTTPStatus  = errors.New("document request rejected")
)

// Fetcher is the slice of the fetch client the resolver needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) fetch.Result
}

// Resolution is the outcome of resolving a URL. When the input was already
// a terminal document, Payload carries the fetched bytes so callers never
// re-fetch just to detect terminality.
type Resolution struct {
	URL      string
	Terminal bool
	Payload  *fetch.Result
}

// Resolver performs exactly one fetch per Resolve call.
type Resolver struct {
	fetcher Fetcher
	rules   []Rule
	logger  zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRules overrides the selection rule order.
func WithRules(rules []Rule) Option {
	return func(r *Resolver) { r.rules = rules }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver builds a resolver with DefaultRules.
func NewResolver(f Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: f,
		rules:   DefaultRules(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rules exposes the active rule order for inspection.
func (r *Resolver) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Resolve fetches the URL once and classifies it. Terminal documents (PDF,
// or HTML without index markers) come back unchanged with their payload
// attached. Index pages yield the selected primary-document URL, which the
// caller fetches. Index pages with no usable candidate fail with
// ErrNoCandidate, a structural mismatch to extend the rules for, not a
// crash.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (Resolution, error) {
	res := r.fetcher.Fetch(ctx, rawURL)
	if !res.OK() {
		if res.Status == fetch.StatusHTTPError {
			return Resolution{}, fmt.Errorf("%w: HTTP %d fetching %s", ErrHTTPStatus, res.StatusCode, rawURL)
		}
		return Resolution{}, fmt.Errorf("%w: %s: %v", ErrUnreachable, rawURL, res.Err)
	}

	terminal := Resolution{URL: rawURL, Terminal: true, Payload: &res}

	if !strings.Contains(res.ContentType, "html") {
		return terminal, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		// Unparseable HTML is the extractor's problem, not an index page.
		return terminal, nil
	}

	pageURL := res.FinalURL
	if pageURL == "" {
		pageURL = rawURL
	}
	if !hasIndexSuffix(pageURL) && !hasDocumentTable(doc) {
		return terminal, nil
	}

	base, _ := url.Parse(pageURL)
	cands := collectCandidates(doc, base)
	if len(cands) == 0 {
		return Resolution{}, fmt.Errorf("%w: %s", ErrNoCandidate, rawURL)
	}

	for _, rule := range r.rules {
		if c, ok := rule.Pick(cands); ok {
			r.logger.Debug().
				Str("rule", rule.Name).
				Str("index", rawURL).
				Str("document", c.URL).
				Msg("resolved primary document")
			return Resolution{URL: c.URL, Terminal: false}, nil
		}
	}
	return Resolution{}, fmt.Errorf("%w: %s", ErrNoCandidate, rawURL)
}

// hasIndexSuffix recognizes filing index pages by URL shape.
func hasIndexSuffix(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, "-index.htm") || strings.HasSuffix(p, "-index.html")
}

// hasDocumentTable recognizes index pages by body shape: a table whose
// header mentions documents/types and whose rows link to document files.
func hasDocumentTable(doc *goquery.Document) bool {
	found := false
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		header := strings.ToLower(table.Find("th").Text())
		if header == "" {
			header = strings.ToLower(table.Find("tr").First().Text())
		}
		if !strings.Contains(header, "document") && !strings.Contains(header, "type") {
			return true
		}
		links := 0
		table.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok && hasExtension(href, ".htm", ".html", ".pdf") {
				links++
			}
		})
		if links > 0 {
			found = true
			return false
		}
		return true
	})
	return found
}

// collectCandidates pulls document links out of the page, preferring table
// rows (where description/type/size columns are available) and falling
// back to any document link on the page.
func collectCandidates(doc *goquery.Document, base *url.URL) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate

	add := func(c Candidate) {
		if c.URL == "" || seen[c.URL] || skipCandidate(c) {
			return
		}
		seen[c.URL] = true
		out = append(out, c)
	}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		cols := columnIndex(table)
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			a := row.Find("a[href]").First()
			if a.Length() == 0 {
				return
			}
			href, _ := a.Attr("href")
			if !hasExtension(href, ".htm", ".html", ".pdf") {
				return
			}
			c := Candidate{
				URL:  absolutize(base, href),
				Name: linkFileName(href, a.Text()),
			}
			cells := row.Find("td")
			if i, ok := cols["description"]; ok && i < cells.Length() {
				c.Description = strings.TrimSpace(cells.Eq(i).Text())
			}
			if i, ok := cols["type"]; ok && i < cells.Length() {
				c.Type = strings.TrimSpace(cells.Eq(i).Text())
			}
			if i, ok := cols["size"]; ok && i < cells.Length() {
				if n, err := strconv.ParseInt(strings.TrimSpace(cells.Eq(i).Text()), 10, 64); err == nil {
					c.Size = n
				}
			}
			add(c)
		})
	})

	if len(out) > 0 {
		return out
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !hasExtension(href, ".htm", ".html", ".pdf") {
			return
		}
		add(Candidate{
			URL:  absolutize(base, href),
			Name: linkFileName(href, a.Text()),
		})
	})
	return out
}

// columnIndex maps recognized header labels to their column positions.
func columnIndex(table *goquery.Selection) map[string]int {
	cols := make(map[string]int)
	headers := table.Find("th")
	if headers.Length() == 0 {
		headers = table.Find("tr").First().Find("td")
	}
	headers.Each(func(i int, h *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(h.Text()))
		switch {
		case strings.Contains(label, "description"):
			cols["description"] = i
		case strings.Contains(label, "type"):
			cols["type"] = i
		case strings.Contains(label, "size"):
			cols["size"] = i
		}
	})
	return cols
}

func absolutize(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}
