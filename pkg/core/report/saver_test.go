package report

import (
	"context"
	"os"
	"strings"
	"testing"

	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/extract"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/store"
)

func sampleFiling() locate.FilingMetadata {
	return locate.FilingMetadata{
		Symbol: "AAPL",
		Market: locate.MarketUS,
		Title:  "Apple Inc. 10-Q",
		Date:   "2024-09-30",
		URL:    "https://www.sec.gov/Archives/edgar/data/320193/000032019324000081/aapl-20240930.htm",
		Source: "edgar",
	}
}

func TestSaverArchivesRenderedPage(t *testing.T) {
	dir := t.TempDir()
	saver := NewSaver(NewRenderer(), store.NewArchive(dir), nil)

	ext := extract.Result{OK: true, ContentType: "text/html", ByteSize: 64}
	review := analysis.Result{OK: true, Summary: "Revenue grew."}

	path, err := saver.Save(context.Background(), sampleFiling(), ext, review)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("expected path under %s, got %s", dir, path)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading archived report: %v", err)
	}
	if !strings.Contains(string(html), "AAPL") {
		t.Error("archived report should mention the symbol")
	}
}

func TestSaverToleratesDisabledStore(t *testing.T) {
	saver := NewSaver(NewRenderer(), store.NewArchive(t.TempDir()), store.NewReportRepo(nil))

	path, err := saver.Save(context.Background(), sampleFiling(), extract.Result{OK: true}, analysis.Result{OK: true})
	if err != nil {
		t.Fatalf("disabled repository should not fail the save: %v", err)
	}
	if path == "" {
		t.Error("expected an archived file path")
	}
}

func TestSaverWithoutTargets(t *testing.T) {
	saver := NewSaver(nil, nil, nil)

	path, err := saver.Save(context.Background(), sampleFiling(), extract.Result{OK: true}, analysis.Result{OK: true})
	if err != nil {
		t.Fatalf("Save with no targets should be a no-op: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}
