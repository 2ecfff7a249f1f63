package report

import (
	"context"
	"errors"
	"fmt"

	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/extract"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/store"
)

// Saver renders a finished review and persists it. The archive and the
// repository are each optional; a nil target is skipped rather than
// treated as an error, so the same Saver works with any mix of disk and
// database persistence.
type Saver struct {
	renderer *Renderer
	archive  *store.Archive
	repo     *store.ReportRepo
}

// NewSaver creates a Saver. A nil renderer falls back to the default one.
func NewSaver(renderer *Renderer, archive *store.Archive, repo *store.ReportRepo) *Saver {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Saver{renderer: renderer, archive: archive, repo: repo}
}

// Save renders the review page, writes it to the archive and upserts the
// database record. It returns the archived file path, empty when no
// archive is configured. A disabled repository is not an error.
func (s *Saver) Save(ctx context.Context, meta locate.FilingMetadata, ext extract.Result, review analysis.Result) (string, error) {
	html, err := s.renderer.Render(PageFor(meta, review))
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	var path string
	if s.archive != nil {
		path, err = s.archive.Save(meta.Symbol, meta.Date, html)
		if err != nil {
			return "", fmt.Errorf("failed to archive report: %w", err)
		}
	}

	if s.repo != nil {
		rec := store.ReportRecord{
			Metadata:    meta,
			ContentType: ext.ContentType,
			ByteSize:    ext.ByteSize,
			Review:      &review,
			HTMLPath:    path,
		}
		if err := s.repo.Save(ctx, &rec); err != nil && !errors.Is(err, store.ErrDisabled) {
			return path, fmt.Errorf("failed to persist report record: %w", err)
		}
	}

	return path, nil
}
