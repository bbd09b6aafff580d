package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/shared/metrics"
	"go.uber.org/zap"
)

// ErrMismatchedBatch a fetch returned records that belong to another item
var ErrMismatchedBatch = errors.New("gallery batch does not reference the requested item")

// Fetcher loads the gallery records of one line item.
type Fetcher interface {
	FetchGallery(ctx context.Context, itemID int64) ([]Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, itemID int64) ([]Record, error)

func (f FetcherFunc) FetchGallery(ctx context.Context, itemID int64) ([]Record, error) {
	return f(ctx, itemID)
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep timer based SleepFunc; a cancelled context stops the timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Runner drives a Machine against a Fetcher.
type Runner struct {
	fetcher Fetcher
	opts    Options
	logger  *zap.Logger
	sleep   SleepFunc
}

func NewRunner(fetcher Fetcher, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{fetcher: fetcher, opts: opts.withDefaults(), logger: logger, sleep: Sleep}
}

// WithSleep replaces the delay function.
func (r *Runner) WithSleep(fn SleepFunc) *Runner {
	r.sleep = fn
	return r
}

// Run reconciles items in order and returns the updated list.
// On cancellation it returns the items as far as they got together with ctx.Err().
func (r *Runner) Run(ctx context.Context, items []Item) ([]Item, Stats, error) {
	m := NewMachine(r.opts)
	cmd := m.Start(items)

	for {
		switch cmd.Kind {
		case KindDone:
			st := m.Stats()
			recordItems(st)
			r.logger.Debug("reconcile finished",
				zap.Int("items", len(items)),
				zap.Int("fetches", st.Fetches),
				zap.Int("loaded", st.Loaded),
				zap.Int("gave_up", st.GaveUp),
				zap.Int("skipped", st.Skipped))
			return m.Items(), st, nil

		case KindAdvance:
			if err := r.sleep(ctx, cmd.Delay); err != nil {
				return m.Items(), m.Stats(), err
			}
			cmd = m.Advance()

		case KindFetch:
			if err := r.sleep(ctx, cmd.Delay); err != nil {
				return m.Items(), m.Stats(), err
			}
			cmd = r.fetch(ctx, m, cmd.ItemID)
			if err := ctx.Err(); err != nil {
				return m.Items(), m.Stats(), err
			}

		default:
			return m.Items(), m.Stats(), fmt.Errorf("reconcile: unexpected %s command", cmd.Kind)
		}
	}
}

func (r *Runner) fetch(ctx context.Context, m *Machine, itemID int64) Command {
	records, err := r.fetcher.FetchGallery(ctx, itemID)
	if err != nil {
		metrics.ReconcileFetchesTotal.WithLabelValues("error").Inc()
		r.logger.Warn("gallery fetch failed",
			zap.Int64("item_id", itemID),
			zap.Int("attempt", m.RetryCount(itemID)+1),
			zap.Error(err))
		return m.OnError(itemID, err)
	}
	if len(records) == 0 {
		metrics.ReconcileFetchesTotal.WithLabelValues("empty").Inc()
		return m.OnSuccess(itemID, records)
	}

	cmd := m.OnSuccess(itemID, records)
	if cmd.Kind != KindIgnore {
		metrics.ReconcileFetchesTotal.WithLabelValues("success").Inc()
		return cmd
	}
	// a batch for our own request that lacks the item counts as a failed attempt
	metrics.ReconcileFetchesTotal.WithLabelValues("mismatch").Inc()
	r.logger.Warn("gallery batch mismatched", zap.Int64("item_id", itemID), zap.Int("records", len(records)))
	return m.OnError(itemID, ErrMismatchedBatch)
}

func recordItems(st Stats) {
	metrics.ReconcileItemsTotal.WithLabelValues("loaded").Add(float64(st.Loaded))
	metrics.ReconcileItemsTotal.WithLabelValues("gave_up").Add(float64(st.GaveUp))
	metrics.ReconcileItemsTotal.WithLabelValues("skipped").Add(float64(st.Skipped))
	metrics.ReconcileItemsTotal.WithLabelValues("already_loaded").Add(float64(st.AlreadyLoaded))
}
