package loader

import (
	"os"
	"path/filepath"
	"testing"

	"haru/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStrategies(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validStrategies = `
strategies:
  aapl:
    exchange: nas
    kind: pullback
    take_profit_pct: 8
    stop_loss_pct: -5
    use_long_trend_filter: true
    trailing_activate_pct: 6
    trailing_drawdown_pct: 3
    cooldown_hours: 48
  NVDA:
    exchange: NAS
    kind: breakout
    take_profit_pct: 12
    stop_loss_pct: -6
    overbought_rsi_ceiling: 75
    trailing_activate_pct: 8
    trailing_drawdown_pct: 4
    scout_enabled: true
    scout_rsi_floor: 45
`

func TestLoaderNormalizesSymbols(t *testing.T) {
	l, err := NewStrategyLoader(writeStrategies(t, validStrategies))
	require.NoError(t, err)

	snap := l.Snapshot()
	assert.Len(t, snap.Strategies, 2)

	aapl, ok := snap.Strategies["AAPL"]
	require.True(t, ok, "lowercase symbol keys are uppercased")
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.Equal(t, "NAS", aapl.Exchange)
	assert.Equal(t, strategy.KindPullback, aapl.Kind)
	assert.Equal(t, 60, aapl.LongTrendWindow, "long window defaults to 60")

	nvda := snap.Strategies["NVDA"]
	assert.Equal(t, strategy.KindBreakout, nvda.Kind)
	assert.InDelta(t, 0.3, nvda.ScoutAllocationFraction, 1e-9, "scout fraction defaults when enabled")
}

func TestLoaderDefaultsExchange(t *testing.T) {
	body := `
strategies:
  KO:
    kind: pullback
    take_profit_pct: 5
    stop_loss_pct: -4
    trailing_activate_pct: 4
    trailing_drawdown_pct: 2
`
	l, err := NewStrategyLoader(writeStrategies(t, body))
	require.NoError(t, err)
	assert.Equal(t, "NYS", l.Snapshot().Strategies["KO"].Exchange)
}

func TestLoaderRejectsUnknownKind(t *testing.T) {
	body := `
strategies:
  AAPL:
    kind: momentum
    take_profit_pct: 8
    stop_loss_pct: -5
    trailing_activate_pct: 6
    trailing_drawdown_pct: 3
`
	_, err := NewStrategyLoader(writeStrategies(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind")
}

func TestLoaderRejectsBadThresholds(t *testing.T) {
	cases := map[string]string{
		"take_profit": `
strategies:
  AAPL: {kind: pullback, take_profit_pct: 0, stop_loss_pct: -5, trailing_activate_pct: 6, trailing_drawdown_pct: 3}
`,
		"stop_loss": `
strategies:
  AAPL: {kind: pullback, take_profit_pct: 8, stop_loss_pct: 5, trailing_activate_pct: 6, trailing_drawdown_pct: 3}
`,
		"trailing": `
strategies:
  AAPL: {kind: pullback, take_profit_pct: 8, stop_loss_pct: -5, trailing_activate_pct: 0, trailing_drawdown_pct: 3}
`,
		// 50 is what RSI reads on insufficient history; a floor there or
		// above would scout-buy blind.
		"scout_floor_at_sentinel": `
strategies:
  NVDA: {kind: breakout, take_profit_pct: 12, stop_loss_pct: -6, trailing_activate_pct: 8, trailing_drawdown_pct: 4, scout_enabled: true, scout_rsi_floor: 50}
`,
		"scout_floor_above_sentinel": `
strategies:
  NVDA: {kind: breakout, take_profit_pct: 12, stop_loss_pct: -6, trailing_activate_pct: 8, trailing_drawdown_pct: 4, scout_enabled: true, scout_rsi_floor: 55}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewStrategyLoader(writeStrategies(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoaderRejectsScoutOnPullback(t *testing.T) {
	body := `
strategies:
  AAPL:
    kind: pullback
    take_profit_pct: 8
    stop_loss_pct: -5
    trailing_activate_pct: 6
    trailing_drawdown_pct: 3
    scout_enabled: true
    scout_rsi_floor: 45
`
	_, err := NewStrategyLoader(writeStrategies(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scout")
}

func TestLoaderRejectsEmptyFile(t *testing.T) {
	_, err := NewStrategyLoader(writeStrategies(t, "strategies: {}\n"))
	assert.Error(t, err)
}

func TestSnapshotIsACopy(t *testing.T) {
	l, err := NewStrategyLoader(writeStrategies(t, validStrategies))
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.Strategies["AAPL"] = strategy.Config{Symbol: "TAMPERED"}
	assert.Equal(t, "AAPL", l.Snapshot().Strategies["AAPL"].Symbol)
}
