package runner

import (
	"context"
	"testing"

	"haru/internal/config/loader"
	"haru/internal/gateway/kis"
	"haru/internal/gateway/notifier"
	"haru/internal/ledger"
	"haru/internal/store/memstore"
	"haru/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMarket struct{ mock.Mock }

func (m *mockMarket) Quote(ctx context.Context, symbol, exchange string) (float64, error) {
	args := m.Called(ctx, symbol, exchange)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockMarket) DailyCloses(ctx context.Context, symbol, exchange string, days int) ([]float64, error) {
	args := m.Called(ctx, symbol, exchange, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type mockAccount struct{ mock.Mock }

func (m *mockAccount) Positions(ctx context.Context) ([]strategy.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]strategy.Position), args.Error(1)
}

func (m *mockAccount) BuyingPower(ctx context.Context, symbol, exchange string, price float64) (float64, error) {
	args := m.Called(ctx, symbol, exchange, price)
	return args.Get(0).(float64), args.Error(1)
}

type mockExec struct{ mock.Mock }

func (m *mockExec) SubmitMarketOrder(ctx context.Context, symbol, exchange, side string, quantity int64) (string, error) {
	args := m.Called(ctx, symbol, exchange, side, quantity)
	return args.String(0), args.Error(1)
}

type stubStrategies struct{ snap loader.Snapshot }

func (s stubStrategies) Snapshot() loader.Snapshot { return s.snap }

type captureNotifier struct{ msgs []notifier.StructuredMessage }

func (c *captureNotifier) SendText(string) error { return nil }
func (c *captureNotifier) SendStructured(msg notifier.StructuredMessage) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

type fixture struct {
	runner    *Runner
	market    *mockMarket
	account   *mockAccount
	exec      *mockExec
	trailing  *ledger.TrailingLedger
	cooldowns *ledger.CooldownLedger
	trades    *ledger.TradeLog
	notify    *captureNotifier
}

func newFixture(strategies map[string]strategy.Config) *fixture {
	st := memstore.New()
	f := &fixture{
		market:    &mockMarket{},
		account:   &mockAccount{},
		exec:      &mockExec{},
		trailing:  ledger.NewTrailingLedger(st),
		cooldowns: ledger.NewCooldownLedger(st),
		trades:    ledger.NewTradeLog(st),
		notify:    &captureNotifier{},
	}
	f.runner = New(
		f.market, f.account, f.exec,
		stubStrategies{snap: loader.Snapshot{Version: 1, Strategies: strategies}},
		f.trailing, f.cooldowns, f.trades, f.notify,
	)
	return f
}

func pullbackCfg(symbol string) strategy.Config {
	return strategy.Config{
		Symbol:              symbol,
		Exchange:            "NAS",
		Kind:                strategy.KindPullback,
		TakeProfitPct:       8,
		StopLossPct:         -5,
		LongTrendWindow:     60,
		TrailingActivatePct: 6,
		TrailingDrawdownPct: 3,
		CooldownHours:       48,
	}
}

// closesAveraging builds 20 closes whose mean is avg.
func closesAveraging(avg float64) []float64 {
	out := make([]float64, 20)
	for i := range out {
		out[i] = avg
	}
	return out
}

func result(summary *RunSummary, symbol, phase string) *SymbolResult {
	for i, r := range summary.Results {
		if r.Symbol == symbol && r.Phase == phase {
			return &summary.Results[i]
		}
	}
	return nil
}

func TestTakeProfitExitStartsNoCooldown(t *testing.T) {
	f := newFixture(map[string]strategy.Config{"AAPL": pullbackCfg("AAPL")})
	ctx := context.Background()

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{
		{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 108},
	}, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideSell, int64(10)).Return("OID-1", nil)
	// Entry phase still evaluates the symbol after the exit.
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(108.0, nil)

	summary, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)

	exit := result(summary, "AAPL", "exit")
	require.NotNil(t, exit)
	assert.Equal(t, strategy.ActionTakeProfit, exit.Action)
	assert.Equal(t, "OID-1", exit.OrderID)

	// Take-profit is not protective: no cooldown was recorded.
	status, err := f.cooldowns.Check(ctx, "AAPL", 48)
	require.NoError(t, err)
	assert.False(t, status.Cooling)

	// Trailing state cleared with the position.
	recs, _ := f.trailing.Snapshot(ctx)
	assert.Empty(t, recs)

	// The close reached the trade log with its profit rate.
	trades, _ := f.trades.Recent(ctx, 10)
	require.Len(t, trades, 1)
	assert.Equal(t, "TAKE_PROFIT", trades[0].Action)
	require.NotNil(t, trades[0].ProfitRate)
	assert.InDelta(t, 8.0, *trades[0].ProfitRate, 1e-9)
}

func TestStopLossStartsCooldownAndBlocksReentry(t *testing.T) {
	f := newFixture(map[string]strategy.Config{"AAPL": pullbackCfg("AAPL")})
	ctx := context.Background()

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{
		{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 94},
	}, nil).Once()
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideSell, int64(10)).Return("OID-2", nil)

	summary, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)

	exit := result(summary, "AAPL", "exit")
	require.NotNil(t, exit)
	assert.Equal(t, strategy.ActionStopLoss, exit.Action)

	// Cooldown recorded in the exit phase blocks the entry phase of the
	// same run, before any market data is fetched.
	entry := result(summary, "AAPL", "entry")
	require.NotNil(t, entry)
	assert.Equal(t, strategy.ActionNoBuy, entry.Action)
	assert.Contains(t, entry.Reason, "cooling")
	f.market.AssertNotCalled(t, "DailyCloses", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.market.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrailingStopIsProtective(t *testing.T) {
	f := newFixture(map[string]strategy.Config{"AAPL": pullbackCfg("AAPL")})
	ctx := context.Background()

	// Seed the high via an earlier observation.
	_, err := f.trailing.Observe(ctx, "AAPL", 100, 110)
	require.NoError(t, err)

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{
		{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 106},
	}, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideSell, int64(10)).Return("OID-3", nil)

	summary, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)

	exit := result(summary, "AAPL", "exit")
	require.NotNil(t, exit)
	assert.Equal(t, strategy.ActionTrailingStop, exit.Action)

	status, err := f.cooldowns.Check(ctx, "AAPL", 48)
	require.NoError(t, err)
	assert.True(t, status.Cooling)
	assert.Contains(t, status.Reason, "TRAILING_STOP")
}

func TestStopLossWithZeroCooldownLeavesNoRecord(t *testing.T) {
	cfg := pullbackCfg("AAPL")
	cfg.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfg})
	ctx := context.Background()

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{
		{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 94},
	}, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideSell, int64(10)).Return("OID-9", nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(94.0, nil)
	f.account.On("BuyingPower", mock.Anything, "AAPL", "NAS", 94.0).Return(940.0, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideBuy, int64(10)).Return("OID-10", nil)

	summary, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)

	exit := result(summary, "AAPL", "exit")
	require.NotNil(t, exit)
	assert.Equal(t, strategy.ActionStopLoss, exit.Action)

	// Nothing ever checks a zero-hour cooldown, so nothing is recorded.
	recs, err := f.cooldowns.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEntryBuysAndLogs(t *testing.T) {
	cfg := pullbackCfg("AAPL")
	cfg.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfg})
	ctx := context.Background()

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(90.0, nil)
	f.account.On("BuyingPower", mock.Anything, "AAPL", "NAS", 90.0).Return(1000.0, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideBuy, int64(11)).Return("OID-4", nil)

	summary, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)

	entry := result(summary, "AAPL", "entry")
	require.NotNil(t, entry)
	assert.Equal(t, strategy.ActionBuy, entry.Action)
	assert.Equal(t, int64(11), entry.Quantity)

	trades, _ := f.trades.Recent(ctx, 10)
	require.Len(t, trades, 1)
	assert.Equal(t, "BUY", trades[0].Action)
	assert.Nil(t, trades[0].ProfitRate)
}

func TestEntryNoBalanceWhenFundsShort(t *testing.T) {
	cfg := pullbackCfg("AAPL")
	cfg.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfg})

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(90.0, nil)
	f.account.On("BuyingPower", mock.Anything, "AAPL", "NAS", 90.0).Return(50.0, nil)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	entry := result(summary, "AAPL", "entry")
	require.NotNil(t, entry)
	assert.Equal(t, strategy.ActionNoBalance, entry.Action)
	assert.Empty(t, entry.Err, "empty wallet is an outcome, not a failure")
	f.exec.AssertNotCalled(t, "SubmitMarketOrder",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEntryVenueRejectionRecodedAsNoBalance(t *testing.T) {
	cfg := pullbackCfg("AAPL")
	cfg.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfg})

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(90.0, nil)
	f.account.On("BuyingPower", mock.Anything, "AAPL", "NAS", 90.0).Return(1000.0, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideBuy, int64(11)).
		Return("", &kis.OrderError{Symbol: "AAPL", Side: kis.SideBuy, InsufficientFunds: true})

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	entry := result(summary, "AAPL", "entry")
	require.NotNil(t, entry)
	assert.Equal(t, strategy.ActionNoBalance, entry.Action)
	assert.Empty(t, entry.Err)

	trades, _ := f.trades.Recent(context.Background(), 10)
	assert.Empty(t, trades, "rejected orders never reach the trade log")
}

func TestRegularEntrySkippedWhenPositionOpen(t *testing.T) {
	cfg := pullbackCfg("AAPL")
	cfg.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfg})

	// Holding, but not enough movement to exit.
	f.account.On("Positions", mock.Anything).Return([]strategy.Position{
		{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 101},
	}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(110), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(101.0, nil)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	entry := result(summary, "AAPL", "entry")
	require.NotNil(t, entry)
	assert.Equal(t, strategy.ActionNoBuy, entry.Action)
	assert.Equal(t, "position already open", entry.Reason)
}

func TestScoutMayAddToOpenPosition(t *testing.T) {
	cfg := strategy.Config{
		Symbol:                  "NVDA",
		Exchange:                "NAS",
		Kind:                    strategy.KindBreakout,
		TakeProfitPct:           12,
		StopLossPct:             -6,
		TrailingActivatePct:     8,
		TrailingDrawdownPct:     4,
		ScoutEnabled:            true,
		ScoutRSIFloor:           45,
		ScoutAllocationFraction: 0.5,
	}
	f := newFixture(map[string]strategy.Config{"NVDA": cfg})

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{
		{Symbol: "NVDA", Quantity: 5, AvgCost: 100, CurrentPrice: 101},
	}, nil)
	// Closes falling day over day (recent-first: each newer close lower)
	// push RSI to 0, under the scout floor.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	f.market.On("DailyCloses", mock.Anything, "NVDA", "NAS", mock.Anything).Return(closes, nil)
	f.market.On("Quote", mock.Anything, "NVDA", "NAS").Return(101.0, nil)
	f.account.On("BuyingPower", mock.Anything, "NVDA", "NAS", 101.0).Return(1010.0, nil)
	// 50% of 1010 = 505 -> 5 shares at 101.
	f.exec.On("SubmitMarketOrder", mock.Anything, "NVDA", "NAS", kis.SideBuy, int64(5)).Return("OID-5", nil)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	entry := result(summary, "NVDA", "entry")
	require.NotNil(t, entry)
	assert.Equal(t, strategy.ActionBuy, entry.Action)
	assert.Equal(t, int64(5), entry.Quantity)
}

func TestPerSymbolErrorIsolation(t *testing.T) {
	cfgA := pullbackCfg("AAPL")
	cfgA.CooldownHours = 0
	cfgB := pullbackCfg("MSFT")
	cfgB.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfgA, "MSFT": cfgB})

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).
		Return(nil, &kis.MarketDataError{Symbol: "AAPL", Op: "dailyprice"})
	f.market.On("DailyCloses", mock.Anything, "MSFT", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "MSFT", "NAS").Return(90.0, nil)
	f.account.On("BuyingPower", mock.Anything, "MSFT", "NAS", 90.0).Return(1000.0, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "MSFT", "NAS", kis.SideBuy, int64(11)).Return("OID-6", nil)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err, "one broken symbol must not abort the run")

	failed := result(summary, "AAPL", "entry")
	require.NotNil(t, failed)
	assert.NotEmpty(t, failed.Err)

	healthy := result(summary, "MSFT", "entry")
	require.NotNil(t, healthy)
	assert.Equal(t, strategy.ActionBuy, healthy.Action)
}

func TestAuthErrorAbortsRun(t *testing.T) {
	cfgA := pullbackCfg("AAPL")
	cfgA.CooldownHours = 0
	cfgB := pullbackCfg("MSFT")
	cfgB.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfgA, "MSFT": cfgB})

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).
		Return(nil, &kis.MarketDataError{Symbol: "AAPL", Op: "dailyprice", Err: &kis.AuthError{}})

	summary, err := f.runner.RunOnce(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, summary.Fatal)
	// MSFT was never attempted.
	assert.Nil(t, result(summary, "MSFT", "entry"))
}

func TestExitsEvaluatedBeforeEntries(t *testing.T) {
	cfg := pullbackCfg("AAPL")
	cfg.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfg})

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{
		{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 108},
	}, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideSell, int64(10)).Return("OID-7", nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(90.0, nil)
	f.account.On("BuyingPower", mock.Anything, "AAPL", "NAS", 90.0).Return(500.0, nil)
	f.exec.On("SubmitMarketOrder", mock.Anything, "AAPL", "NAS", kis.SideBuy, int64(5)).Return("OID-8", nil)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(summary.Results), 2)
	assert.Equal(t, "exit", summary.Results[0].Phase)
	// The position closed in the exit phase no longer blocks the entry.
	entry := result(summary, "AAPL", "entry")
	require.NotNil(t, entry)
	assert.Equal(t, strategy.ActionBuy, entry.Action)
}

func TestDisabledRunnerRefusesToRun(t *testing.T) {
	f := newFixture(map[string]strategy.Config{"AAPL": pullbackCfg("AAPL")})
	f.runner.Disable()

	_, err := f.runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)

	f.runner.Enable()
	f.account.On("Positions", mock.Anything).Return([]strategy.Position{}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(105.0, nil)
	_, err = f.runner.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestRunSummaryNotified(t *testing.T) {
	cfg := pullbackCfg("AAPL")
	cfg.CooldownHours = 0
	f := newFixture(map[string]strategy.Config{"AAPL": cfg})

	f.account.On("Positions", mock.Anything).Return([]strategy.Position{}, nil)
	f.market.On("DailyCloses", mock.Anything, "AAPL", "NAS", mock.Anything).Return(closesAveraging(100), nil)
	f.market.On("Quote", mock.Anything, "AAPL", "NAS").Return(105.0, nil)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, summary)
	require.Len(t, f.notify.msgs, 1)
	assert.Contains(t, f.notify.msgs[0].Title, "1 symbols")
}
