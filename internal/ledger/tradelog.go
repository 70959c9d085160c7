package ledger

import (
	"context"
	"time"

	"haru/internal/store"
)

// MaxTradeRecords caps the trade log; older entries are pruned after each run.
const MaxTradeRecords = 100

// TradeLog is the append-only record of executed orders.
type TradeLog struct {
	st  store.Store
	now func() time.Time
}

func NewTradeLog(st store.Store) *TradeLog {
	return &TradeLog{st: st, now: time.Now}
}

// Append records one executed order. profitRate is nil for entries.
func (t *TradeLog) Append(ctx context.Context, runID, symbol, action string, price float64, quantity int64, profitRate *float64, reason string) error {
	return t.st.Trades().Append(ctx, store.TradeRecord{
		RunID:      runID,
		Symbol:     symbol,
		Action:     action,
		Price:      price,
		Quantity:   quantity,
		ProfitRate: profitRate,
		Reason:     reason,
		Timestamp:  t.now(),
	})
}

// Recent returns up to limit records, newest first.
func (t *TradeLog) Recent(ctx context.Context, limit int) ([]store.TradeRecord, error) {
	if limit <= 0 || limit > MaxTradeRecords {
		limit = MaxTradeRecords
	}
	return t.st.Trades().Recent(ctx, limit)
}

// Trim enforces the record cap.
func (t *TradeLog) Trim(ctx context.Context) error {
	return t.st.Trades().Prune(ctx, MaxTradeRecords)
}
