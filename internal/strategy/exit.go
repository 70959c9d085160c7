package strategy

import "fmt"

// EvaluateExit decides whether an open position should be closed.
// highWater is the highest price seen since entry (seeded to avg cost when
// the position is first observed); the returned verdict carries the updated
// high so the caller can persist it.
//
// Priority is fixed: take-profit, stop-loss, trailing stop, hold. The order
// matters at boundaries: a position that crosses both the take-profit
// target and the trailing drawdown on the same tick exits as TAKE_PROFIT
// and therefore starts no cooldown.
func EvaluateExit(pos Position, highWater float64, cfg Config) ExitVerdict {
	high := highWater
	if high < pos.AvgCost {
		high = pos.AvgCost
	}
	if pos.CurrentPrice > high {
		high = pos.CurrentPrice
	}

	profitRate := pos.ProfitRate()
	highProfitRate := 0.0
	dropFromHigh := 0.0
	if pos.AvgCost > 0 {
		highProfitRate = (high - pos.AvgCost) / pos.AvgCost * 100
	}
	if high > 0 {
		dropFromHigh = (high - pos.CurrentPrice) / high * 100
	}

	v := ExitVerdict{
		Action:         ActionHold,
		ProfitRate:     profitRate,
		HighProfitRate: highProfitRate,
		DropFromHigh:   dropFromHigh,
		HighWater:      high,
	}

	switch {
	case cfg.TakeProfitPct > 0 && profitRate >= cfg.TakeProfitPct:
		v.Action = ActionTakeProfit
		v.Reason = fmt.Sprintf("profit %.2f%% reached target %.2f%%", profitRate, cfg.TakeProfitPct)
	case cfg.StopLossPct < 0 && profitRate <= cfg.StopLossPct:
		v.Action = ActionStopLoss
		v.Reason = fmt.Sprintf("loss %.2f%% breached stop %.2f%%", profitRate, cfg.StopLossPct)
	case cfg.TrailingActivatePct > 0 && highProfitRate >= cfg.TrailingActivatePct &&
		cfg.TrailingDrawdownPct > 0 && dropFromHigh >= cfg.TrailingDrawdownPct:
		v.Action = ActionTrailingStop
		v.Reason = fmt.Sprintf("dropped %.2f%% from high %.2f after +%.2f%% peak", dropFromHigh, high, highProfitRate)
	default:
		v.Reason = fmt.Sprintf("holding at %.2f%% (peak +%.2f%%, off high %.2f%%)", profitRate, highProfitRate, dropFromHigh)
	}
	return v
}
