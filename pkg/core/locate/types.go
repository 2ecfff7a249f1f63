package locate

import (
	"errors"
	"strings"
)

// Market selects the discovery strategy for a symbol.
type Market string

const (
	MarketUS Market = "US"
	MarketCN Market = "CN"

	// DefaultMarket applies when the caller leaves the market empty.
	DefaultMarket = MarketCN
)

// Metadata source tags surfaced to callers unchanged.
const (
	SourceEDGAR     = "edgar"
	SourceDirectURL = "direct-url"
)

// FilingMetadata describes the located filing. Immutable once created;
// URL is absolute and dereferenceable at creation time.
type FilingMetadata struct {
	Symbol string `json:"symbol"`
	Market Market `json:"market"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Sentinel errors. Callers match with errors.Is; messages are user-facing
// and must stay distinguishable (an unknown symbol reads differently from
// an unreachable feed or an unintegrated market).
var (
	ErrSymbolNotFound    = errors.New("symbol not recognized by the filing feed")
	ErrNoFilings         = errors.New("no recent filings found")
	ErrFeedUnreachable   = errors.New("filing feed unreachable")
	ErrMarketUnsupported = errors.New("market discovery not integrated")
)

// ParseMarket normalizes a market string, applying the default for empty
// input. Unknown values pass through uppercased so the locator can reject
// them with a precise message.
func ParseMarket(s string) Market {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultMarket
	}
	return Market(s)
}
