package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func exitConfig() Config {
	return Config{
		TakeProfitPct:       8,
		StopLossPct:         -5,
		TrailingActivatePct: 6,
		TrailingDrawdownPct: 3,
	}
}

func TestExitTakeProfit(t *testing.T) {
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 108}
	v := EvaluateExit(pos, 0, exitConfig())
	assert.Equal(t, ActionTakeProfit, v.Action)
	assert.InDelta(t, 8.0, v.ProfitRate, 1e-9)
	assert.False(t, v.Action.IsProtectiveExit())
}

func TestExitStopLoss(t *testing.T) {
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 95}
	v := EvaluateExit(pos, 0, exitConfig())
	assert.Equal(t, ActionStopLoss, v.Action)
	assert.True(t, v.Action.IsProtectiveExit())
}

func TestExitTrailingStop(t *testing.T) {
	// Peaked at 110 (+10%), now 106: 3.63% off the high with trailing
	// armed at +6%.
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 106}
	v := EvaluateExit(pos, 110, exitConfig())
	assert.Equal(t, ActionTrailingStop, v.Action)
	assert.True(t, v.Action.IsProtectiveExit())
	assert.InDelta(t, 110.0, v.HighWater, 1e-9)
}

func TestExitTrailingNotArmedBelowActivation(t *testing.T) {
	// High only +5%, below the +6% activation: drawdown alone cannot fire.
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 101}
	v := EvaluateExit(pos, 105, exitConfig())
	assert.Equal(t, ActionHold, v.Action)
}

func TestExitHold(t *testing.T) {
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 102}
	v := EvaluateExit(pos, 0, exitConfig())
	assert.Equal(t, ActionHold, v.Action)
	assert.InDelta(t, 2.0, v.ProfitRate, 1e-9)
}

func TestExitTakeProfitWinsOverTrailing(t *testing.T) {
	// Crosses both the profit target and the trailing drawdown: the fixed
	// priority picks TAKE_PROFIT, so no cooldown follows.
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 109}
	v := EvaluateExit(pos, 120, exitConfig())
	assert.Equal(t, ActionTakeProfit, v.Action)
}

func TestExitHighWaterSeededAtAvgCost(t *testing.T) {
	// First observation with no recorded high: the high can never sit
	// below cost, so a fresh losing position shows zero peak profit.
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 97}
	v := EvaluateExit(pos, 0, exitConfig())
	assert.InDelta(t, 100.0, v.HighWater, 1e-9)
	assert.InDelta(t, 0.0, v.HighProfitRate, 1e-9)
}

func TestExitHighWaterMonotonic(t *testing.T) {
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100, CurrentPrice: 112}
	v := EvaluateExit(pos, 105, exitConfig())
	// Current price raises the high.
	assert.InDelta(t, 112.0, v.HighWater, 1e-9)

	pos.CurrentPrice = 111
	v = EvaluateExit(pos, 112, exitConfig())
	// A lower price never lowers it.
	assert.InDelta(t, 112.0, v.HighWater, 1e-9)
}

func TestExitEndToEndScenarios(t *testing.T) {
	cfg := Config{
		TakeProfitPct:       10,
		StopLossPct:         -5,
		TrailingActivatePct: 5,
		TrailingDrawdownPct: 3,
	}

	// Bought at 100, rose to 109, now 105.73: 3% off the high after a
	// +9% peak -> trailing stop.
	pos := Position{Symbol: "NVDA", Quantity: 5, AvgCost: 100, CurrentPrice: 105.73}
	v := EvaluateExit(pos, 109, cfg)
	assert.Equal(t, ActionTrailingStop, v.Action)

	// Same position but the drop from high is only 2%: hold.
	pos.CurrentPrice = 106.82
	v = EvaluateExit(pos, 109, cfg)
	assert.Equal(t, ActionHold, v.Action)
}
