// Package watch refreshes reports for a configured symbol list on a cron
// schedule. One slow or failing symbol never blocks the rest of the batch.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/pipeline"
)

const defaultEntryTimeout = 2 * time.Minute

// Acquirer runs one acquisition. *pipeline.Orchestrator satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, target string, market locate.Market) pipeline.Outcome
}

// Entry names one symbol the scheduler keeps fresh.
type Entry struct {
	Symbol string
	Market locate.Market
}

// OutcomeHandler receives each refresh result, successful or not. Handlers
// run sequentially on the scheduler goroutine.
type OutcomeHandler func(ctx context.Context, entry Entry, outcome pipeline.Outcome)

// Watcher drives periodic acquisitions through the pipeline.
type Watcher struct {
	acquirer Acquirer
	entries  []Entry
	schedule string
	timeout  time.Duration
	handler  OutcomeHandler
	cron     *cron.Cron
	logger   zerolog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithTimeout bounds each symbol's refresh.
func WithTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithOutcomeHandler registers a callback for refresh results.
func WithOutcomeHandler(h OutcomeHandler) Option {
	return func(w *Watcher) { w.handler = h }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a scheduler for the given watchlist. The schedule
// accepts standard 5-field cron specs and descriptors like "@every 6h".
func NewWatcher(acquirer Acquirer, entries []Entry, schedule string, opts ...Option) *Watcher {
	w := &Watcher{
		acquirer: acquirer,
		entries:  entries,
		schedule: schedule,
		timeout:  defaultEntryTimeout,
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the refresh job and begins ticking. An empty watchlist
// leaves the scheduler idle without error.
func (w *Watcher) Start() error {
	if len(w.entries) == 0 {
		w.logger.Info().Msg("watchlist empty, scheduler idle")
		return nil
	}
	if _, err := w.cron.AddFunc(w.schedule, func() {
		w.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.logger.Info().Str("schedule", w.schedule).Int("symbols", len(w.entries)).Msg("watch scheduler started")
	return nil
}

// Stop halts the schedule and waits for an in-flight refresh to finish.
func (w *Watcher) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info().Msg("watch scheduler stopped")
}

// RunOnce refreshes every watchlist entry sequentially and reports how many
// succeeded and failed. Each entry gets its own timeout; a failure is logged
// and handed to the outcome handler, never propagated.
func (w *Watcher) RunOnce(ctx context.Context) (succeeded, failed int) {
	for _, entry := range w.entries {
		entryCtx, cancel := context.WithTimeout(ctx, w.timeout)
		outcome := w.acquirer.Acquire(entryCtx, entry.Symbol, entry.Market)
		cancel()

		if outcome.OK {
			succeeded++
			w.logger.Info().Str("symbol", entry.Symbol).Str("market", string(entry.Market)).Msg("watch refresh succeeded")
		} else {
			failed++
			evt := w.logger.Warn().Str("symbol", entry.Symbol).Str("market", string(entry.Market))
			if outcome.Failure != nil {
				evt = evt.Str("stage", string(outcome.Failure.Stage)).Str("kind", string(outcome.Failure.Kind))
			}
			evt.Msg("watch refresh failed")
		}

		if w.handler != nil {
			w.handler(ctx, entry, outcome)
		}
	}
	return succeeded, failed
}
