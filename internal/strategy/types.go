package strategy

import "strings"

// Kind selects the entry style for a symbol.
type Kind string

const (
	KindPullback Kind = "pullback"
	KindBreakout Kind = "breakout"
)

// ParseKind normalizes a config string into a Kind. Returns "" on unknown input.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pullback":
		return KindPullback
	case "breakout":
		return KindBreakout
	default:
		return ""
	}
}

// BuyKind distinguishes a full-size entry from a reduced scout entry.
type BuyKind string

const (
	BuyRegular BuyKind = "regular"
	BuyScout   BuyKind = "scout"
)

// Action is what a run decided for one symbol. BUY and the three exit
// actions are the only ones that reach the trade log; the rest only appear
// in run summaries.
type Action string

const (
	ActionBuy          Action = "BUY"
	ActionTakeProfit   Action = "TAKE_PROFIT"
	ActionStopLoss     Action = "STOP_LOSS"
	ActionTrailingStop Action = "TRAILING_STOP"
	ActionHold         Action = "HOLD"
	ActionNoBuy        Action = "NO_BUY"
	ActionNoBalance    Action = "NO_BALANCE"
)

// IsProtectiveExit reports whether the action starts a re-entry cooldown.
// Take-profit exits deliberately do not: a winner closed at target should
// stay eligible for the next signal.
func (a Action) IsProtectiveExit() bool {
	return a == ActionStopLoss || a == ActionTrailingStop
}

// IsExit reports whether the action closes a position.
func (a Action) IsExit() bool {
	return a == ActionTakeProfit || a.IsProtectiveExit()
}

// Config holds the per-symbol strategy settings. Loaded once per run from
// the strategies file and treated as immutable afterwards.
type Config struct {
	Symbol   string `mapstructure:"-" yaml:"-"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
	Kind     Kind   `mapstructure:"kind" yaml:"kind"`

	TakeProfitPct float64 `mapstructure:"take_profit_pct" yaml:"take_profit_pct"`
	StopLossPct   float64 `mapstructure:"stop_loss_pct" yaml:"stop_loss_pct"`

	UseLongTrendFilter bool `mapstructure:"use_long_trend_filter" yaml:"use_long_trend_filter"`
	LongTrendWindow    int  `mapstructure:"long_trend_window" yaml:"long_trend_window"`

	// OverboughtRSICeiling gates breakout entries; 0 disables the gate.
	OverboughtRSICeiling int `mapstructure:"overbought_rsi_ceiling" yaml:"overbought_rsi_ceiling"`

	TrailingActivatePct float64 `mapstructure:"trailing_activate_pct" yaml:"trailing_activate_pct"`
	TrailingDrawdownPct float64 `mapstructure:"trailing_drawdown_pct" yaml:"trailing_drawdown_pct"`

	CooldownHours int `mapstructure:"cooldown_hours" yaml:"cooldown_hours"`

	ScoutEnabled            bool    `mapstructure:"scout_enabled" yaml:"scout_enabled"`
	ScoutRSIFloor           int     `mapstructure:"scout_rsi_floor" yaml:"scout_rsi_floor"`
	ScoutAllocationFraction float64 `mapstructure:"scout_allocation_fraction" yaml:"scout_allocation_fraction"`
}

// Position is an open holding as reported by the broker. The engine never
// owns positions; it only reads them.
type Position struct {
	Symbol       string
	Quantity     int64
	AvgCost      float64
	CurrentPrice float64
}

// ProfitRate returns the unrealized return in percent.
func (p Position) ProfitRate() float64 {
	if p.AvgCost <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.AvgCost) / p.AvgCost * 100
}

// EntrySignal is the outcome of entry evaluation for one symbol.
type EntrySignal struct {
	Buy    bool
	Kind   BuyKind
	Reason string
}

// ExitVerdict is the outcome of exit evaluation for one open position.
// HighWater carries the post-update high so the caller can persist it.
type ExitVerdict struct {
	Action         Action
	Reason         string
	ProfitRate     float64
	HighProfitRate float64
	DropFromHigh   float64
	HighWater      float64
}
