package strategy

import "fmt"

// EntryInputs carries the market snapshot the entry evaluator works from.
// SMALong is only consulted when the config enables the long trend filter;
// RSI is only consulted by breakout configs.
type EntryInputs struct {
	Price    float64
	SMAShort float64
	SMALong  float64
	RSI      float64
}

// EvaluateEntry decides BUY / SCOUT-BUY / NO-BUY for one symbol.
//
// Pullback buys dips under the short average inside an assumed uptrend, so
// the long-average filter vetoes entries once the bigger trend has rolled
// over. Breakout buys strength above the short average, gated by an
// overbought ceiling; a deep oversold reading bypasses the breakout gate
// entirely and enters as a reduced-size scout.
func EvaluateEntry(in EntryInputs, cfg Config) EntrySignal {
	switch cfg.Kind {
	case KindPullback:
		return evaluatePullback(in, cfg)
	case KindBreakout:
		return evaluateBreakout(in, cfg)
	default:
		return EntrySignal{Reason: fmt.Sprintf("unknown strategy kind %q", cfg.Kind)}
	}
}

func evaluatePullback(in EntryInputs, cfg Config) EntrySignal {
	if in.SMAShort == 0 {
		return EntrySignal{Reason: "insufficient data for short average"}
	}
	if in.Price >= in.SMAShort {
		return EntrySignal{Reason: fmt.Sprintf("price %.2f above short average %.2f", in.Price, in.SMAShort)}
	}
	if cfg.UseLongTrendFilter && in.SMALong > 0 && in.Price < in.SMALong {
		return EntrySignal{Reason: fmt.Sprintf("long-term downtrend: price %.2f below %d-day average %.2f", in.Price, cfg.LongTrendWindow, in.SMALong)}
	}
	return EntrySignal{
		Buy:    true,
		Kind:   BuyRegular,
		Reason: fmt.Sprintf("pullback confirmed: price %.2f below short average %.2f", in.Price, in.SMAShort),
	}
}

func evaluateBreakout(in EntryInputs, cfg Config) EntrySignal {
	// Scout override comes first: deep oversold is an independent bargain
	// signal, not a breakout confirmation, so it skips every other gate.
	if cfg.ScoutEnabled && cfg.ScoutRSIFloor > 0 && in.RSI < float64(cfg.ScoutRSIFloor) {
		return EntrySignal{
			Buy:    true,
			Kind:   BuyScout,
			Reason: fmt.Sprintf("oversold bargain entry: RSI %.1f below %d", in.RSI, cfg.ScoutRSIFloor),
		}
	}
	if in.SMAShort == 0 {
		return EntrySignal{Reason: "insufficient data for short average"}
	}
	if in.Price <= in.SMAShort {
		return EntrySignal{Reason: fmt.Sprintf("price %.2f below short average %.2f", in.Price, in.SMAShort)}
	}
	if cfg.OverboughtRSICeiling > 0 && in.RSI >= float64(cfg.OverboughtRSICeiling) {
		return EntrySignal{Reason: fmt.Sprintf("overbought: RSI %.1f at or above %d", in.RSI, cfg.OverboughtRSICeiling)}
	}
	return EntrySignal{
		Buy:    true,
		Kind:   BuyRegular,
		Reason: fmt.Sprintf("breakout confirmed: price %.2f above short average %.2f", in.Price, in.SMAShort),
	}
}
