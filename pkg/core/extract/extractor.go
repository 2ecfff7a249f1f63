// Package extract turns fetched document bytes into plain text. HTML is
// handled natively; PDF decoding is an injected, possibly-absent
// capability so the pipeline degrades with a clear message instead of
// failing when no decoder is wired in.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Reason discriminates extraction failures for programmatic handling.
// Human-readable detail lives in Result.Message.
type Reason string

const (
	ReasonUnsupportedType   Reason = "unsupported-type"
	ReasonMissingPDFDecoder Reason = "missing-pdf-decoder"
	ReasonMalformed         Reason = "malformed"
)

// Documents past this many non-blank lines are truncated.
const maxLines = 20000

// Result reports one extraction. Text is empty whenever OK is false.
type Result struct {
	OK          bool   `json:"ok"`
	ContentType string `json:"content_type"`
	ByteSize    int    `json:"byte_size"`
	Text        string `json:"text,omitempty"`
	Message     string `json:"message"`
	Reason      Reason `json:"reason,omitempty"`
}

// PDFDecoder is the optional PDF capability. Implementations must return
// an error rather than panic on corrupt input.
type PDFDecoder interface {
	Extract(data []byte) (string, error)
}

// Extractor converts document bytes to plain text. It never panics and
// never returns a Go error; failures are Results with OK=false.
type Extractor struct {
	pdf    PDFDecoder
	logger zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPDFDecoder injects the PDF capability.
func WithPDFDecoder(d PDFDecoder) Option {
	return func(e *Extractor) { e.pdf = d }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New builds an Extractor. Without WithPDFDecoder, PDF input yields a
// missing-capability result.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPDFSupport reports whether a PDF decoder is configured.
func (e *Extractor) HasPDFSupport() bool { return e.pdf != nil }

// Extract branches on the detected content type.
func (e *Extractor) Extract(data []byte, contentType string) Result {
	res := Result{ContentType: contentType, ByteSize: len(data)}
	switch {
	case strings.Contains(contentType, "html"):
		return e.extractHTML(data, res)
	case strings.Contains(contentType, "pdf"):
		return e.extractPDF(data, res)
	default:
		res.Message = fmt.Sprintf("unsupported content type: %s", contentType)
		res.Reason = ReasonUnsupportedType
		return res
	}
}

// extractHTML strips scripts, styles, navigation chrome and hidden
// elements, unwraps inline XBRL tags so their values stay readable, and
// collapses whitespace.
func (e *Extractor) extractHTML(data []byte, res Result) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		res.Message = fmt.Sprintf("malformed HTML document: %v", err)
		res.Reason = ReasonMalformed
		return res
	}

	doc.Find("script, style, noscript, nav").Remove()
	doc.Find("[hidden], [style*='display:none'], [style*='display: none']").Remove()
	doc.Find("ix\\:nonFraction, ix\\:nonNumeric, ix\\:fraction").Each(func(_ int, sel *goquery.Selection) {
		sel.ReplaceWithHtml(sel.Text())
	})

	raw := doc.Find("body").Text()
	if strings.TrimSpace(raw) == "" {
		raw = doc.Text()
	}

	text := collapseWhitespace(raw)
	if text == "" {
		res.Message = "document contained no extractable text"
		res.Reason = ReasonMalformed
		return res
	}

	res.OK = true
	res.Text = text
	res.Message = fmt.Sprintf("extracted text from %s document", res.ContentType)
	return res
}

func (e *Extractor) extractPDF(data []byte, res Result) Result {
	if e.pdf == nil {
		res.Message = "PDF support is not configured: no PDF decoder is available in this build"
		res.Reason = ReasonMissingPDFDecoder
		return res
	}

	text, err := e.pdf.Extract(data)
	if err != nil {
		e.logger.Debug().Err(err).Int("bytes", len(data)).Msg("PDF extraction failed")
		res.Message = fmt.Sprintf("PDF extraction failed: %v", err)
		res.Reason = ReasonMalformed
		return res
	}

	text = collapseWhitespace(text)
	if text == "" {
		res.Message = "PDF contained no extractable text"
		res.Reason = ReasonMalformed
		return res
	}

	res.OK = true
	res.Text = text
	res.Message = fmt.Sprintf("extracted text from %s document", res.ContentType)
	return res
}

// collapseWhitespace squeezes runs of whitespace inside lines, drops blank
// lines, and caps the line count.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.Join(strings.Fields(ln), " ")
		if ln == "" {
			continue
		}
		out = append(out, ln)
		if len(out) >= maxLines {
			break
		}
	}
	return strings.Join(out, "\n")
}
