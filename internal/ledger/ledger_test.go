package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"haru/internal/store/memstore"

	"github.com/stretchr/testify/assert"
)

func TestTrailingObserveSeedsAtAvgCost(t *testing.T) {
	st := memstore.New()
	l := NewTrailingLedger(st)
	ctx := context.Background()

	// Losing position on first observation: high sits at cost.
	high, err := l.Observe(ctx, "AAPL", 100, 95)
	assert.NoError(t, err)
	assert.InDelta(t, 100.0, high, 1e-9)

	recs, err := l.Snapshot(ctx)
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.InDelta(t, 100.0, recs[0].HighWater, 1e-9)
}

func TestTrailingObserveMonotonic(t *testing.T) {
	st := memstore.New()
	l := NewTrailingLedger(st)
	ctx := context.Background()

	high, _ := l.Observe(ctx, "AAPL", 100, 110)
	assert.InDelta(t, 110.0, high, 1e-9)

	// A lower price never lowers the recorded high.
	high, _ = l.Observe(ctx, "AAPL", 100, 104)
	assert.InDelta(t, 110.0, high, 1e-9)

	high, _ = l.Observe(ctx, "AAPL", 100, 115)
	assert.InDelta(t, 115.0, high, 1e-9)
}

func TestTrailingClear(t *testing.T) {
	st := memstore.New()
	l := NewTrailingLedger(st)
	ctx := context.Background()

	_, _ = l.Observe(ctx, "AAPL", 100, 110)
	assert.NoError(t, l.Clear(ctx, "AAPL"))

	// Re-entry after a clear starts fresh from cost.
	high, _ := l.Observe(ctx, "AAPL", 102, 101)
	assert.InDelta(t, 102.0, high, 1e-9)
}

func TestCooldownCheckAndExpiry(t *testing.T) {
	st := memstore.New()
	l := NewCooldownLedger(st)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	assert.NoError(t, l.Trigger(ctx, "NVDA", "STOP_LOSS"))

	l.now = func() time.Time { return base.Add(47 * time.Hour) }
	status, err := l.Check(ctx, "NVDA", 48)
	assert.NoError(t, err)
	assert.True(t, status.Cooling)
	assert.Contains(t, status.Describe(), "STOP_LOSS")
	assert.InDelta(t, 1.0, status.Remaining.Hours(), 1e-9)

	// Exactly at the window boundary the cooldown has expired.
	l.now = func() time.Time { return base.Add(48 * time.Hour) }
	status, err = l.Check(ctx, "NVDA", 48)
	assert.NoError(t, err)
	assert.False(t, status.Cooling)

	// The lazy delete removed the record.
	recs, err := l.Snapshot(ctx)
	assert.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCooldownUnknownSymbolNotCooling(t *testing.T) {
	st := memstore.New()
	l := NewCooldownLedger(st)

	status, err := l.Check(context.Background(), "MSFT", 48)
	assert.NoError(t, err)
	assert.False(t, status.Cooling)
}

func TestCooldownClear(t *testing.T) {
	st := memstore.New()
	l := NewCooldownLedger(st)
	ctx := context.Background()

	assert.NoError(t, l.Trigger(ctx, "NVDA", "TRAILING_STOP"))
	assert.NoError(t, l.Clear(ctx, "NVDA"))

	status, err := l.Check(ctx, "NVDA", 48)
	assert.NoError(t, err)
	assert.False(t, status.Cooling)
}

func TestTradeLogCap(t *testing.T) {
	st := memstore.New()
	l := NewTradeLog(st)
	ctx := context.Background()

	for i := 0; i < MaxTradeRecords+20; i++ {
		err := l.Append(ctx, "run-1", fmt.Sprintf("SYM%d", i), "BUY", 100, 1, nil, "test")
		assert.NoError(t, err)
	}
	assert.NoError(t, l.Trim(ctx))

	recs, err := l.Recent(ctx, MaxTradeRecords+20)
	assert.NoError(t, err)
	assert.Len(t, recs, MaxTradeRecords)
	// Newest first: the last appended symbol leads.
	assert.Equal(t, fmt.Sprintf("SYM%d", MaxTradeRecords+19), recs[0].Symbol)
}

func TestTradeLogProfitRateOnlyOnExits(t *testing.T) {
	st := memstore.New()
	l := NewTradeLog(st)
	ctx := context.Background()

	rate := 8.5
	assert.NoError(t, l.Append(ctx, "run-1", "AAPL", "BUY", 100, 10, nil, "pullback"))
	assert.NoError(t, l.Append(ctx, "run-2", "AAPL", "TAKE_PROFIT", 108.5, 10, &rate, "target hit"))

	recs, err := l.Recent(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "TAKE_PROFIT", recs[0].Action)
	if assert.NotNil(t, recs[0].ProfitRate) {
		assert.InDelta(t, 8.5, *recs[0].ProfitRate, 1e-9)
	}
	assert.Nil(t, recs[1].ProfitRate)
}
