// Package ledger holds the run-persistent state the decision engine depends
// on: trailing high-water marks, re-entry cooldowns and the trade log. The
// ledgers are owned by the run orchestrator; evaluators only ever see
// values read from here. Read-modify-write cycles run inside one store
// transaction so an overlapping manual run cannot interleave with a
// scheduled one on the same symbol.
package ledger

import (
	"context"
	"time"

	"haru/internal/store"
)

// TrailingLedger tracks the highest observed price per symbol since entry.
type TrailingLedger struct {
	st  store.Store
	now func() time.Time
}

func NewTrailingLedger(st store.Store) *TrailingLedger {
	return &TrailingLedger{st: st, now: time.Now}
}

// Observe folds a new price observation into the high-water mark and
// returns the updated high. A symbol seen for the first time is seeded at
// avgCost, so the high never starts below cost. The mark only ever rises
// while the record exists. The get-then-put runs in one transaction.
func (l *TrailingLedger) Observe(ctx context.Context, symbol string, avgCost, currentPrice float64) (float64, error) {
	var high float64
	err := l.st.WithTx(ctx, func(tx store.Store) error {
		rec, err := tx.Trailing().Get(ctx, symbol)
		if err != nil {
			return err
		}
		high = avgCost
		if rec != nil && rec.HighWater > high {
			high = rec.HighWater
		}
		changed := rec == nil
		if currentPrice > high {
			high = currentPrice
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.Trailing().Put(ctx, store.TrailingRecord{
			Symbol:      symbol,
			HighWater:   high,
			LastUpdated: l.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	return high, nil
}

// Clear removes the record once the position is closed for any reason.
func (l *TrailingLedger) Clear(ctx context.Context, symbol string) error {
	return l.st.Trailing().Delete(ctx, symbol)
}

// Snapshot lists all current records (admin API).
func (l *TrailingLedger) Snapshot(ctx context.Context) ([]store.TrailingRecord, error) {
	return l.st.Trailing().List(ctx)
}
