package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// cnTerm binds a statement line item label to a canonical key and the
// pattern that captures its figure and unit, e.g. "营业收入：3,250.5亿元".
type cnTerm struct {
	label string
	key   string
	re    *regexp.Regexp
}

var cnTerms = buildCNTerms()

func buildCNTerms() []cnTerm {
	pairs := []struct{ label, key string }{
		{"营业收入", "revenue"},
		{"主营业务收入", "main_revenue"},
		{"营业总收入", "total_revenue"},
		{"销售收入", "sales_revenue"},

		{"净利润", "net_profit"},
		{"归属于母公司所有者的净利润", "net_profit_parent"},
		{"毛利润", "gross_profit"},
		{"营业利润", "operating_profit"},
		{"利润总额", "total_profit"},
		{"扣除非经常性损益后的净利润", "adjusted_net_profit"},

		{"总资产", "total_assets"},
		{"流动资产", "current_assets"},
		{"非流动资产", "non_current_assets"},
		{"货币资金", "cash_and_equivalents"},
		{"应收账款", "accounts_receivable"},
		{"存货", "inventory"},
		{"固定资产", "fixed_assets"},

		{"总负债", "total_liabilities"},
		{"流动负债", "current_liabilities"},
		{"非流动负债", "non_current_liabilities"},
		{"短期借款", "short_term_debt"},
		{"长期借款", "long_term_debt"},
		{"应付账款", "accounts_payable"},

		{"所有者权益", "shareholders_equity"},
		{"股本", "share_capital"},
		{"资本公积", "capital_surplus"},
		{"盈余公积", "surplus_reserves"},
		{"未分配利润", "retained_earnings"},

		{"经营活动产生的现金流量净额", "operating_cash_flow"},
		{"投资活动产生的现金流量净额", "investing_cash_flow"},
		{"筹资活动产生的现金流量净额", "financing_cash_flow"},
		{"现金及现金等价物净增加额", "net_cash_increase"},
	}

	terms := make([]cnTerm, 0, len(pairs))
	for _, p := range pairs {
		terms = append(terms, cnTerm{
			label: p.label,
			key:   p.key,
			re:    regexp.MustCompile(p.label + `[：:]\s*(-?[\d,]+\.?\d*)\s*(万元|亿元|千元|元)`),
		})
	}
	return terms
}

var cnUnitScales = map[string]decimal.Decimal{
	"元":  decimal.New(1, 0),
	"千元": decimal.New(1, 3),
	"万元": decimal.New(1, 4),
	"亿元": decimal.New(1, 8),
}

var hundred = decimal.NewFromInt(100)

// analyzeCN extracts labeled figures from a Chinese report, derives the
// standard ratios and renders the review in Chinese.
func (e *Engine) analyzeCN(text string) Result {
	figures := extractCNFigures(text)
	ratios := computeCNRatios(figures)

	revenue := "营业收入分析："
	if v, ok := figures["revenue"]; ok {
		revenue += fmt.Sprintf("营业收入为%s元。", formatAmount(v))
		switch {
		case v.GreaterThan(decimal.New(1, 11)):
			revenue += "属于大型企业收入规模。"
		case v.GreaterThan(decimal.New(1, 10)):
			revenue += "属于中大型企业收入规模。"
		case v.GreaterThan(decimal.New(1, 9)):
			revenue += "属于中型企业收入规模。"
		default:
			revenue += "属于中小型企业收入规模。"
		}
	} else {
		revenue += "未能从报告中提取到明确的营业收入数据，建议查看损益表。"
	}

	profitability := "盈利能力分析："
	if v, ok := figures["net_profit"]; ok {
		if v.IsPositive() {
			profitability += fmt.Sprintf("净利润为%s元，公司盈利。", formatAmount(v))
		} else {
			profitability += fmt.Sprintf("净利润为%s元，公司亏损。", formatAmount(v))
		}
		if m, ok := ratios["net_margin"]; ok {
			profitability += fmt.Sprintf("净利率为%s%%。", m.StringFixed(2))
			switch {
			case m.GreaterThan(decimal.NewFromInt(15)):
				profitability += "净利率较高，盈利能力强。"
			case m.GreaterThan(decimal.NewFromInt(5)):
				profitability += "净利率适中。"
			default:
				profitability += "净利率较低，需关注成本控制。"
			}
		}
	} else {
		profitability += "未能提取到净利润数据，请查看利润表详情。"
	}

	cashflow := "现金流分析："
	if v, ok := figures["operating_cash_flow"]; ok {
		if v.IsPositive() {
			cashflow += fmt.Sprintf("经营活动现金流为%s元，现金流为正。", formatAmount(v))
		} else {
			cashflow += fmt.Sprintf("经营活动现金流为%s元，现金流为负，需关注。", formatAmount(v))
		}
	} else {
		cashflow += "未能提取到经营现金流数据，建议查看现金流量表。"
	}

	debt := "债务风险分析："
	debtRatio, hasDebtRatio := ratios["debt_to_asset_ratio"]
	if hasDebtRatio {
		debt += fmt.Sprintf("资产负债率为%s%%。", debtRatio.StringFixed(2))
		switch {
		case debtRatio.GreaterThan(decimal.NewFromInt(70)):
			debt += "资产负债率较高，债务风险需要关注。"
		case debtRatio.GreaterThan(decimal.NewFromInt(50)):
			debt += "资产负债率适中。"
		default:
			debt += "资产负债率较低，财务结构稳健。"
		}
	} else {
		debt += "未能计算资产负债率，建议查看资产负债表。"
	}

	var riskNotes []string
	if cr, ok := ratios["current_ratio"]; ok && cr.LessThan(decimal.NewFromInt(1)) {
		riskNotes = append(riskNotes, fmt.Sprintf("流动比率为%s，低于1，短期偿债能力需关注", cr.StringFixed(2)))
	}
	if hasDebtRatio && debtRatio.GreaterThan(decimal.NewFromInt(70)) {
		riskNotes = append(riskNotes, "资产负债率超过70%，债务负担较重")
	}
	if v, ok := figures["net_profit"]; ok && v.IsNegative() {
		riskNotes = append(riskNotes, "公司出现亏损，需关注经营状况")
	}
	if len(riskNotes) == 0 {
		riskNotes = append(riskNotes, "基于当前数据，未发现明显财务风险")
	}

	positives := 0
	if v, ok := figures["net_profit"]; ok && v.IsPositive() {
		positives++
	}
	if v, ok := figures["operating_cash_flow"]; ok && v.IsPositive() {
		positives++
	}
	if hasDebtRatio && debtRatio.LessThan(decimal.NewFromInt(60)) {
		positives++
	}

	summary := "A股财务健康状况综合评估：基于提取的财务数据进行分析，"
	switch score := float64(positives) / 3; {
	case score >= 0.8:
		summary += "财务状况良好。"
	case score >= 0.6:
		summary += "财务状况一般，有改善空间。"
	default:
		summary += "财务状况需要关注，建议深入分析。"
	}

	return Result{
		OK:            true,
		Summary:       summary,
		Revenue:       revenue,
		Profitability: profitability,
		CashFlow:      cashflow,
		Debt:          debt,
		RiskNotes:     riskNotes,
	}
}

// extractCNFigures pulls the first figure found for each known line item,
// normalized to yuan.
func extractCNFigures(text string) map[string]decimal.Decimal {
	figures := make(map[string]decimal.Decimal)
	for _, term := range cnTerms {
		m := term.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		figures[term.key] = value.Mul(cnUnitScales[m[2]])
	}
	return figures
}

func computeCNRatios(figures map[string]decimal.Decimal) map[string]decimal.Decimal {
	ratios := make(map[string]decimal.Decimal)

	assets, hasAssets := figures["total_assets"]
	revenue, hasRevenue := figures["revenue"]

	if liabilities, ok := figures["total_liabilities"]; ok && hasAssets && assets.IsPositive() {
		ratios["debt_to_asset_ratio"] = liabilities.Div(assets).Mul(hundred)
	}
	if ca, ok := figures["current_assets"]; ok {
		if cl, ok := figures["current_liabilities"]; ok && cl.IsPositive() {
			ratios["current_ratio"] = ca.Div(cl)
		}
	}
	if gp, ok := figures["gross_profit"]; ok && hasRevenue && revenue.IsPositive() {
		ratios["gross_margin"] = gp.Div(revenue).Mul(hundred)
	}
	if np, ok := figures["net_profit"]; ok {
		if hasRevenue && revenue.IsPositive() {
			ratios["net_margin"] = np.Div(revenue).Mul(hundred)
		}
		if eq, ok := figures["shareholders_equity"]; ok && eq.IsPositive() {
			ratios["roe"] = np.Div(eq).Mul(hundred)
		}
		if hasAssets && assets.IsPositive() {
			ratios["roa"] = np.Div(assets).Mul(hundred)
		}
	}

	return ratios
}

// formatAmount renders a figure rounded to whole yuan with thousands
// separators.
func formatAmount(d decimal.Decimal) string {
	s := d.Round(0).String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}
