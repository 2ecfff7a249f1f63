// Package analysis produces rule-driven, plain-language reviews of report
// text across four dimensions: revenue, profitability, cash flow and
// debt. It works fully offline; no model calls are involved.
package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Lines longer than this are too noisy to quote as a clue.
const maxClueRunes = 400

// At most this many clue lines are harvested per dimension.
const maxClueLines = 30

// Texts below this many runes get a limited-insight note.
const shortTextRunes = 500

var (
	revenuePattern = regexp.MustCompile(`(?i)revenue|sales|top line|营业收入|收入|主营业务收入`)
	profitPattern  = regexp.MustCompile(`(?i)net income|profit|earnings|EPS|净利润|毛利率|费用率`)
	cashPattern    = regexp.MustCompile(`(?i)cash flow|operating cash|现金流|经营活动现金流|自由现金流`)
	debtPattern    = regexp.MustCompile(`(?i)debt|leverage|liabilities|asset[- ]?liability|负债|资产负债率`)

	hanPattern = regexp.MustCompile(`[\p{Han}]`)
)

// Engine turns extracted report text into a Result. It routes texts that
// are mostly Han characters to the figure-based CN path and everything
// else through keyword clue harvesting.
type Engine struct{}

// NewEngine creates a new instance of the engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Analyze performs the full review of the given report text.
func (e *Engine) Analyze(text string) Result {
	if hanShare(text) > 0.3 {
		res := e.analyzeCN(text)
		res.Language = "zh"
		return res
	}

	short := utf8.RuneCountInString(text) < shortTextRunes

	revenueClues := findIndicatorLines(text, revenuePattern)
	profitClues := findIndicatorLines(text, profitPattern)
	cashClues := findIndicatorLines(text, cashPattern)
	debtClues := findIndicatorLines(text, debtPattern)

	var riskNotes []string
	if short {
		riskNotes = append(riskNotes, "The source text is short; insights may be limited.")
	}
	if len(debtClues) == 0 {
		riskNotes = append(riskNotes, "Debt information is unclear; consider reviewing the balance sheet and notes.")
	}
	if len(cashClues) == 0 {
		riskNotes = append(riskNotes, "Cash flows are not explicit; check operating cash vs net income consistency.")
	}

	return Result{
		OK:       true,
		Language: "en",
		Summary: "Overall, this is a plain-language financial health review covering revenue, profitability, cash flow, and debt. " +
			"It highlights potential signals extracted from the document. " +
			"Please validate key figures against official statements.",
		Revenue: mkParagraph("Revenue performance", revenueClues,
			"Revenue performance: No clear revenue lines detected; please refer to the detailed report for exact figures."),
		Profitability: mkParagraph("Profitability", profitClues,
			"Profitability: Unable to locate profit-related sentences; margins and EPS may need manual confirmation."),
		CashFlow: mkParagraph("Cash flow status", cashClues,
			"Cash flow status: No obvious cash flow sentences found; verify operating cash flow in the statement."),
		Debt: mkParagraph("Debt & risk level", debtClues,
			"Debt & risk level: Debt-related context not found; check leverage and short-term borrowing carefully."),
		RiskNotes: riskNotes,
	}
}

// findIndicatorLines collects lines that mention an indicator, skipping
// blank and over-long ones.
func findIndicatorLines(text string, pattern *regexp.Regexp) []string {
	var found []string
	for _, ln := range strings.Split(text, "\n") {
		if !pattern.MatchString(ln) {
			continue
		}
		s := strings.TrimSpace(ln)
		if s == "" || utf8.RuneCountInString(s) >= maxClueRunes {
			continue
		}
		found = append(found, s)
		if len(found) >= maxClueLines {
			break
		}
	}
	return found
}

// mkParagraph previews up to three clues behind a dimension title.
func mkParagraph(title string, clues []string, fallback string) string {
	if len(clues) == 0 {
		return fallback
	}
	preview := clues
	if len(preview) > 3 {
		preview = preview[:3]
	}
	return fmt.Sprintf("%s: %s", title, strings.Join(preview, " | "))
}

// hanShare reports the fraction of runes that are Han characters.
func hanShare(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	han := len(hanPattern.FindAllString(text, -1))
	return float64(han) / float64(total)
}
