package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Archive keeps rendered report pages on disk, one HTML file per
// acquisition. It works independently of the database store.
type Archive struct {
	dir string
}

// NewArchive creates an archive rooted at dir. The directory is created
// on first save.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Dir returns the archive root.
func (a *Archive) Dir() string {
	return a.dir
}

// Save writes an HTML page and returns its path. File names follow
// symbol_date_id.html so pages for one symbol sort together.
func (a *Archive) Save(symbol, date, html string) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if strings.TrimSpace(symbol) == "" {
		symbol = "report"
	}
	if date == "" {
		date = time.Now().Format("20060102_150405")
	}

	name := fmt.Sprintf("%s_%s_%s.html", sanitizeName(symbol), sanitizeName(date), uuid.New().String()[:8])
	path := filepath.Join(a.dir, name)

	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// List returns archived page paths for a symbol, newest first.
func (a *Archive) List(symbol string) ([]string, error) {
	pattern := filepath.Join(a.dir, sanitizeName(symbol)+"_*.html")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

// sanitizeName keeps file names shell- and path-safe.
func sanitizeName(s string) string {
	return unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
}
