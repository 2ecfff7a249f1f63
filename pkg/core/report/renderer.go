// Package report renders acquisition and analysis results into
// self-contained HTML review pages.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/store"

	"github.com/yuin/goldmark"
)

// Page carries everything one review page shows.
type Page struct {
	Symbol      string
	Title       string
	Market      locate.Market
	Date        string
	SourceURL   string
	Review      analysis.Result
	GeneratedAt time.Time
}

// PageFor builds a review page for freshly acquired filing metadata.
func PageFor(meta locate.FilingMetadata, review analysis.Result) Page {
	return Page{
		Symbol:      meta.Symbol,
		Title:       meta.Title,
		Market:      meta.Market,
		Date:        meta.Date,
		SourceURL:   meta.URL,
		Review:      review,
		GeneratedAt: time.Now(),
	}
}

// PageFromRecord rebuilds a review page from a stored report record,
// keeping the original generation time.
func PageFromRecord(rec *store.ReportRecord) Page {
	review := analysis.Result{}
	if rec.Review != nil {
		review = *rec.Review
	}
	page := PageFor(rec.Metadata, review)
	page.GeneratedAt = rec.UpdatedAt
	return page
}

// Renderer converts pages into styled standalone HTML documents. The
// body is composed as Markdown and converted with Goldmark, so review
// text is escaped rather than interpreted as markup.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with default Goldmark settings.
func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New()}
}

// BuildMarkdown composes the Markdown body of a review page.
func (r *Renderer) BuildMarkdown(page Page) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", page.Title)
	fmt.Fprintf(&sb, "**Symbol:** %s | **Market:** %s", page.Symbol, marketDisplay(page.Market))
	if page.Date != "" {
		fmt.Fprintf(&sb, " | **Filing date:** %s", page.Date)
	}
	sb.WriteString("\n\n")
	if page.SourceURL != "" {
		fmt.Fprintf(&sb, "Source: <%s>\n\n", page.SourceURL)
	}

	fmt.Fprintf(&sb, "## Overview\n\n%s\n\n", page.Review.Summary)
	fmt.Fprintf(&sb, "## Revenue\n\n%s\n\n", page.Review.Revenue)
	fmt.Fprintf(&sb, "## Profitability\n\n%s\n\n", page.Review.Profitability)
	fmt.Fprintf(&sb, "## Cash Flow\n\n%s\n\n", page.Review.CashFlow)
	fmt.Fprintf(&sb, "## Debt & Risk\n\n%s\n\n", page.Review.Debt)

	if len(page.Review.RiskNotes) > 0 {
		sb.WriteString("## Risk Notes\n\n")
		for _, note := range page.Review.RiskNotes {
			fmt.Fprintf(&sb, "- %s\n", note)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Render converts the page into a dark-themed HTML document.
func (r *Renderer) Render(page Page) (string, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(r.BuildMarkdown(page)), &body); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}

	generated := page.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	var out bytes.Buffer
	err := pageTemplate.Execute(&out, shellData{
		Title:       page.Title,
		Symbol:      page.Symbol,
		Market:      marketDisplay(page.Market),
		Status:      statusLabel(page.Review.Summary),
		GeneratedAt: generated.Format("2006.01.02"),
		Body:        template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("page template failed: %w", err)
	}
	return out.String(), nil
}

// statusLabel compresses the review summary into a short badge.
func statusLabel(summary string) string {
	switch {
	case strings.Contains(summary, "良好"):
		return "财务良好"
	case strings.Contains(summary, "一般"):
		return "状况一般"
	case strings.Contains(summary, "关注"), strings.Contains(summary, "风险"):
		return "需要关注"
	default:
		return "待评估"
	}
}

func marketDisplay(market locate.Market) string {
	switch market {
	case locate.MarketCN:
		return "Shanghai Stock Exchange"
	case locate.MarketUS:
		return "NASDAQ/NYSE"
	default:
		return "Stock Exchange"
	}
}

type shellData struct {
	Title       string
	Symbol      string
	Market      string
	Status      string
	GeneratedAt string
	Body        template.HTML
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} | 财务分析报告</title>
<style>
body { background: #000; color: #fff; font-family: 'Inter', -apple-system, BlinkMacSystemFont, sans-serif; margin: 0; }
.container { max-width: 960px; margin: 0 auto; padding: 48px 24px; }
.hero { text-align: center; padding: 64px 0 24px; }
.hero .symbol { color: #E31937; font-size: clamp(3rem, 10vw, 8rem); font-weight: 900; line-height: 0.9; margin: 0; }
.hero .meta { color: #9CA3AF; font-size: 0.9rem; margin-top: 12px; }
.status-pill { display: inline-block; margin-top: 16px; padding: 6px 18px; border: 1px solid rgba(227, 25, 55, 0.4); border-radius: 999px; color: #E31937; font-weight: 700; }
.card { background: rgba(17, 24, 39, 0.6); border: 1px solid rgba(255, 255, 255, 0.1); border-radius: 24px; padding: 8px 32px 24px; margin: 24px 0; }
.card h1 { font-size: 1.8rem; }
.card h2 { color: #E31937; margin-top: 28px; }
.card a { color: #E31937; }
.card li { margin: 6px 0; }
footer { border-top: 1px solid #1F2937; color: #6B7280; text-align: center; padding: 32px 0; font-size: 0.8rem; }
</style>
</head>
<body>
<div class="container">
<div class="hero">
<h1 class="symbol">{{.Symbol}}</h1>
<div class="meta">{{.Market}} | {{.GeneratedAt}}</div>
<div class="status-pill">{{.Status}}</div>
</div>
<div class="card">
{{.Body}}
</div>
</div>
<footer>
<p>本分析报告基于公开信息与自动化分析结果，仅供参考，不构成投资建议</p>
<p>Financial Analysis Report | Generated by FinResearch</p>
</footer>
</body>
</html>
`))
