package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/locate"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRecord is one acquired report together with its review.
type ReportRecord struct {
	ID          string                `json:"id"`
	Metadata    locate.FilingMetadata `json:"metadata"`
	ContentType string                `json:"content_type"`
	ByteSize    int                   `json:"byte_size"`
	Review      *analysis.Result      `json:"review,omitempty"`
	HTMLPath    string                `json:"html_path,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// ReportRepo stores report records keyed by (symbol, market, url).
//
// Schema assumption (managed outside this code):
//
//	CREATE TABLE IF NOT EXISTS research_reports (
//	  id UUID PRIMARY KEY,
//	  symbol TEXT NOT NULL,
//	  market TEXT NOT NULL,
//	  url TEXT NOT NULL,
//	  title TEXT,
//	  filing_date TEXT,
//	  source TEXT,
//	  content_type TEXT,
//	  byte_size BIGINT,
//	  review_json JSONB,
//	  html_path TEXT,
//	  updated_at TIMESTAMPTZ,
//	  UNIQUE (symbol, market, url)
//	);
type ReportRepo struct {
	pool *pgxpool.Pool
}

// NewReportRepo creates a repository bound to the given pool. A nil pool
// yields a disabled repository whose methods return ErrDisabled.
func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// Enabled reports whether this repository can persist anything.
func (r *ReportRepo) Enabled() bool {
	return r.pool != nil
}

// Save upserts a record, keeping one row per (symbol, market, url). The
// record's ID is populated when the row already existed.
func (r *ReportRepo) Save(ctx context.Context, rec *ReportRecord) error {
	if r.pool == nil {
		return ErrDisabled
	}

	var reviewJSON []byte
	if rec.Review != nil {
		var err error
		reviewJSON, err = json.Marshal(rec.Review)
		if err != nil {
			return fmt.Errorf("failed to marshal review: %w", err)
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO research_reports (
			id, symbol, market, url, title, filing_date, source,
			content_type, byte_size, review_json, html_path, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, market, url)
		DO UPDATE SET
			title = EXCLUDED.title,
			filing_date = EXCLUDED.filing_date,
			source = EXCLUDED.source,
			content_type = EXCLUDED.content_type,
			byte_size = EXCLUDED.byte_size,
			review_json = EXCLUDED.review_json,
			html_path = EXCLUDED.html_path,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.Metadata.Symbol, string(rec.Metadata.Market), rec.Metadata.URL,
		rec.Metadata.Title, rec.Metadata.Date, rec.Metadata.Source,
		rec.ContentType, rec.ByteSize, reviewJSON, rec.HTMLPath, time.Now(),
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Latest returns the most recently updated record for a symbol.
func (r *ReportRepo) Latest(ctx context.Context, symbol string, market locate.Market) (*ReportRecord, error) {
	if r.pool == nil {
		return nil, ErrDisabled
	}

	query := `
		SELECT id, symbol, market, url, title, filing_date, source,
		       content_type, byte_size, review_json, html_path, updated_at
		FROM research_reports
		WHERE symbol = $1 AND market = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, symbol, string(market)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no stored report for %s (%s)", symbol, market)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return rec, nil
}

// List returns the most recently updated records across all symbols.
func (r *ReportRepo) List(ctx context.Context, limit int) ([]*ReportRecord, error) {
	if r.pool == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, symbol, market, url, title, filing_date, source,
		       content_type, byte_size, review_json, html_path, updated_at
		FROM research_reports
		ORDER BY updated_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var records []*ReportRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ReportRecord, error) {
	var rec ReportRecord
	var market string
	var reviewJSON []byte

	err := row.Scan(
		&rec.ID, &rec.Metadata.Symbol, &market, &rec.Metadata.URL,
		&rec.Metadata.Title, &rec.Metadata.Date, &rec.Metadata.Source,
		&rec.ContentType, &rec.ByteSize, &reviewJSON, &rec.HTMLPath, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Metadata.Market = locate.Market(market)
	if len(reviewJSON) > 0 {
		var review analysis.Result
		if err := json.Unmarshal(reviewJSON, &review); err == nil {
			rec.Review = &review
		}
	}
	return &rec, nil
}
