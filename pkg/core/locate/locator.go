// Package locate turns a (symbol, market) pair into filing metadata using
// market-specific discovery strategies.
package locate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// strategyFunc is one market's discovery implementation.
type strategyFunc func(ctx context.Context, symbol string) (FilingMetadata, error)

// Locator dispatches discovery by market. Strategies live in an explicit
// map so adding a market means adding an entry, not another branch through
// shared state.
type Locator struct {
	strategies map[Market]strategyFunc
	logger     zerolog.Logger
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithLocatorLogger attaches a logger.
func WithLocatorLogger(l zerolog.Logger) LocatorOption {
	return func(loc *Locator) { loc.logger = l }
}

// NewLocator wires the US strategy to the given EDGAR source and installs
// the CN placeholder.
func NewLocator(edgar *EDGARSource, opts ...LocatorOption) *Locator {
	l := &Locator{
		strategies: map[Market]strategyFunc{
			MarketUS: edgar.LatestFiling,
			MarketCN: locateCN,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate runs the market's strategy. Unknown markets fail with
// ErrMarketUnsupported.
func (l *Locator) Locate(ctx context.Context, symbol string, market Market) (FilingMetadata, error) {
	strategy, ok := l.strategies[market]
	if !ok {
		return FilingMetadata{}, fmt.Errorf("%w: unknown market %q", ErrMarketUnsupported, market)
	}
	meta, err := strategy(ctx, symbol)
	if err != nil {
		l.logger.Debug().Str("symbol", symbol).Str("market", string(market)).Err(err).Msg("locate failed")
		return FilingMetadata{}, err
	}
	return meta, nil
}

// locateCN is a deliberate placeholder: no authoritative public CN
// discovery source is integrated. Direct report URLs bypass the locator
// entirely, so the message points callers there. It must stay
// distinguishable from the no-filings-found case.
func locateCN(_ context.Context, symbol string) (FilingMetadata, error) {
	return FilingMetadata{}, fmt.Errorf("%w: CN filing discovery is not available for %s; supply a direct report URL instead", ErrMarketUnsupported, symbol)
}
