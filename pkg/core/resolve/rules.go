package resolve

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Candidate is one document link extracted from an index page.
type Candidate struct {
	URL         string
	Name        string
	Description string
	Type        string
	Size        int64
}

// Rule is one step of the primary-document selection heuristic. Rules run
// in order; the first rule to pick a candidate wins. The default order is
// overridable via WithRules since filing structures vary across years and
// issuers.
type Rule struct {
	Name string
	Pick func(candidates []Candidate) (Candidate, bool)
}

var (
	// Report codes as they appear in type/description columns: 10-Q, 10-K,
	// also 10Q/10_K spellings.
	reportCodePattern = regexp.MustCompile(`(?i)\b10[-_ ]?[QK]\b`)

	// Primary documents follow a symbol-YYYYMMDD naming convention, e.g.
	// aapl-20240930.htm.
	datedPrimaryPattern = regexp.MustCompile(`(?i)^[a-z0-9]+[-_]\d{8}\.html?$`)

	// Inline viewer artifacts (R1.htm, R42.htm) are never the primary
	// document.
	viewerFilePattern = regexp.MustCompile(`(?i)^r\d+\.html?$`)
)

// DefaultRules returns the standard selection order:
//  1. filing-type: name/description/type mentions the report code, or the
//     name follows the dated primary-document convention
//  2. first-html: primary filings are typically HTML, prefer it over PDF
//  3. largest: largest by size hint, else the first listed
func DefaultRules() []Rule {
	return []Rule{
		{Name: "filing-type", Pick: pickFilingType},
		{Name: "first-html", Pick: pickFirstHTML},
		{Name: "largest", Pick: pickLargest},
	}
}

func pickFilingType(cands []Candidate) (Candidate, bool) {
	for _, c := range cands {
		if reportCodePattern.MatchString(c.Type) ||
			reportCodePattern.MatchString(c.Description) ||
			reportCodePattern.MatchString(c.Name) ||
			datedPrimaryPattern.MatchString(c.Name) {
			return c, true
		}
	}
	return Candidate{}, false
}

func pickFirstHTML(cands []Candidate) (Candidate, bool) {
	for _, c := range cands {
		if hasExtension(c.URL, ".htm", ".html") {
			return c, true
		}
	}
	return Candidate{}, false
}

func pickLargest(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Size > best.Size {
			best = c
		}
	}
	return best, true
}

// skipCandidate drops links that can never be the primary document:
// further index pages (one level of indirection only) and viewer files.
func skipCandidate(c Candidate) bool {
	name := strings.ToLower(c.Name)
	if strings.HasSuffix(name, "-index.htm") || strings.HasSuffix(name, "-index.html") {
		return true
	}
	return viewerFilePattern.MatchString(c.Name)
}

func hasExtension(rawURL string, exts ...string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range exts {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// linkFileName extracts the filename of a link target, falling back to the
// anchor text.
func linkFileName(href, text string) string {
	if u, err := url.Parse(href); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return strings.TrimSpace(text)
}
