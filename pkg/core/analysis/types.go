package analysis

// Result is a plain-language financial health review assembled from
// report text. The four dimension fields are ready-to-display sentences,
// not raw figures. Language is the detected report language code, "en"
// or "zh".
type Result struct {
	OK            bool     `json:"ok"`
	Language      string   `json:"language"`
	Summary       string   `json:"summary"`
	Revenue       string   `json:"revenue"`
	Profitability string   `json:"profitability"`
	CashFlow      string   `json:"cashflow"`
	Debt          string   `json:"debt"`
	RiskNotes     []string `json:"risk_notes"`
}
