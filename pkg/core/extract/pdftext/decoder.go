// Package pdftext implements the extract.PDFDecoder capability with a
// pure Go PDF reader.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Decoder pulls plain text out of PDF bytes page by page. The underlying
// reader panics on some corrupt files; Extract recovers those into errors.
type Decoder struct {
	maxPages int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxPages caps how many pages are read. Zero means no cap.
func WithMaxPages(n int) Option {
	return func(d *Decoder) { d.maxPages = n }
}

// New builds a Decoder with a 2000 page cap.
func New(opts ...Option) *Decoder {
	d := &Decoder{maxPages: 2000}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Extract returns the concatenated text of all pages, blank-line
// separated. Unreadable pages are skipped; an all-unreadable document is
// an error.
func (d *Decoder) Extract(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("panic during PDF extraction: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	total := reader.NumPage()
	pages := total
	if d.maxPages > 0 && pages > d.maxPages {
		pages = d.maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("no text content in PDF (%d pages)", total)
	}
	return out, nil
}
