package analysis

import (
	"strings"
	"testing"
)

const fillerParagraph = "Management discussed strategic priorities for the coming year, including supply chain resilience and headcount planning across all regions. "

func TestAnalyze_EnglishReport(t *testing.T) {
	text := strings.Repeat(fillerParagraph, 3) + `
Total revenue increased 6% to $94.9 billion in the quarter.
Net income was $14.7 billion, or EPS of $0.97.
Operating cash flow remained strong at $26.8 billion.
Total liabilities decreased modestly quarter over quarter.`

	res := NewEngine().Analyze(text)

	if !res.OK {
		t.Fatal("expected OK result")
	}
	if res.Language != "en" {
		t.Errorf("language = %q, want en", res.Language)
	}
	if want := "Revenue performance: Total revenue increased 6% to $94.9 billion in the quarter."; res.Revenue != want {
		t.Errorf("expected %q, got %q", want, res.Revenue)
	}
	if !strings.Contains(res.Profitability, "Net income was $14.7 billion") {
		t.Errorf("expected net income clue, got %q", res.Profitability)
	}
	if !strings.Contains(res.CashFlow, "Operating cash flow remained strong") {
		t.Errorf("expected cash flow clue, got %q", res.CashFlow)
	}
	if !strings.Contains(res.Debt, "Total liabilities decreased") {
		t.Errorf("expected liabilities clue, got %q", res.Debt)
	}
	if len(res.RiskNotes) != 0 {
		t.Errorf("expected no risk notes for a complete long text, got %v", res.RiskNotes)
	}
	if !strings.Contains(res.Summary, "plain-language financial health review") {
		t.Errorf("unexpected summary: %q", res.Summary)
	}
}

func TestAnalyze_FallbacksAndRiskNotes(t *testing.T) {
	res := NewEngine().Analyze("Nothing of substance here.")

	if !strings.Contains(res.Revenue, "No clear revenue lines detected") {
		t.Errorf("expected revenue fallback, got %q", res.Revenue)
	}
	if !strings.Contains(res.Debt, "Debt-related context not found") {
		t.Errorf("expected debt fallback, got %q", res.Debt)
	}

	wantNotes := []string{
		"The source text is short; insights may be limited.",
		"Debt information is unclear; consider reviewing the balance sheet and notes.",
		"Cash flows are not explicit; check operating cash vs net income consistency.",
	}
	if len(res.RiskNotes) != len(wantNotes) {
		t.Fatalf("expected %d risk notes, got %v", len(wantNotes), res.RiskNotes)
	}
	for i, want := range wantNotes {
		if res.RiskNotes[i] != want {
			t.Errorf("note %d: expected %q, got %q", i, want, res.RiskNotes[i])
		}
	}
}

func TestAnalyze_RoutesChineseReports(t *testing.T) {
	res := NewEngine().Analyze("本报告期内公司经营稳健，无重大事项需要披露。")

	if !strings.HasPrefix(res.Summary, "A股财务健康状况综合评估") {
		t.Errorf("expected the CN review path, got summary %q", res.Summary)
	}
	if res.Language != "zh" {
		t.Errorf("language = %q, want zh", res.Language)
	}
}

func TestFindIndicatorLines(t *testing.T) {
	t.Run("caps collected lines", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < maxClueLines+10; i++ {
			sb.WriteString("revenue line\n")
		}
		if got := len(findIndicatorLines(sb.String(), revenuePattern)); got != maxClueLines {
			t.Errorf("expected %d lines, got %d", maxClueLines, got)
		}
	})

	t.Run("skips over-long lines", func(t *testing.T) {
		long := strings.Repeat("revenue and more revenue ", 20)
		if got := findIndicatorLines(long+"\nshort revenue note", revenuePattern); len(got) != 1 || got[0] != "short revenue note" {
			t.Errorf("expected only the short line, got %v", got)
		}
	})

	t.Run("trims and drops blank matches", func(t *testing.T) {
		got := findIndicatorLines("   net sales rose   \n\n", revenuePattern)
		if len(got) != 1 || got[0] != "net sales rose" {
			t.Errorf("expected trimmed single line, got %v", got)
		}
	})
}

func TestMkParagraph_PreviewsThreeClues(t *testing.T) {
	clues := []string{"one", "two", "three", "four"}
	if got := mkParagraph("Title", clues, "fb"); got != "Title: one | two | three" {
		t.Errorf("unexpected paragraph: %q", got)
	}
	if got := mkParagraph("Title", nil, "fb"); got != "fb" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestHanShare(t *testing.T) {
	if got := hanShare("Revenue 收入"); got >= 0.3 {
		t.Errorf("expected mostly-Latin text below threshold, got %f", got)
	}
	if got := hanShare("营业收入增长"); got != 1.0 {
		t.Errorf("expected pure Han text share 1.0, got %f", got)
	}
	if got := hanShare(""); got != 0 {
		t.Errorf("expected 0 for empty text, got %f", got)
	}
}
