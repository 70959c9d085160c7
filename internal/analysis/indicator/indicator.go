// Package indicator computes diagnostic indicator reports for the admin
// surface. The strategy package keeps its own SMA/RSI with the exact
// sentinel semantics the decision rules need; this package is read-only
// telemetry built on talib.
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// Settings describes the windows used in a report.
type Settings struct {
	Symbol   string
	SMAShort int
	SMALong  int
	RSI      int
}

// IndicatorValue holds one indicator's latest value, series and state.
type IndicatorValue struct {
	Latest float64   `json:"latest"`
	Series []float64 `json:"series,omitempty"`
	State  string    `json:"state,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Report aggregates the indicator outputs for one symbol.
type Report struct {
	Symbol   string                    `json:"symbol"`
	Count    int                       `json:"count"`
	Values   map[string]IndicatorValue `json:"values"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// ComputeAll builds a report from daily closes ordered most recent first,
// the ordering the market-data gateway returns.
func ComputeAll(recentFirstCloses []float64, cfg Settings) (Report, error) {
	rep := Report{
		Symbol: cfg.Symbol,
		Count:  len(recentFirstCloses),
		Values: make(map[string]IndicatorValue),
	}
	if len(recentFirstCloses) == 0 {
		return rep, fmt.Errorf("no closes")
	}
	if cfg.SMAShort <= 0 {
		cfg.SMAShort = 20
	}
	if cfg.SMALong <= 0 {
		cfg.SMALong = 60
	}
	if cfg.RSI <= 0 {
		cfg.RSI = 14
	}

	// talib wants oldest first.
	closes := reverse(recentFirstCloses)
	lastClose := closes[len(closes)-1]

	smaShort := sanitizeSeries(talib.Sma(closes, min(cfg.SMAShort, len(closes))))
	smaLong := sanitizeSeries(talib.Sma(closes, min(cfg.SMALong, len(closes))))
	rep.Values["sma_short"] = IndicatorValue{
		Latest: lastValid(smaShort),
		Series: smaShort,
		State:  relativeState(lastClose, lastValid(smaShort)),
		Note:   fmt.Sprintf("SMA%d vs price", cfg.SMAShort),
	}
	rep.Values["sma_long"] = IndicatorValue{
		Latest: lastValid(smaLong),
		Series: smaLong,
		State:  relativeState(lastClose, lastValid(smaLong)),
		Note:   fmt.Sprintf("SMA%d vs price", cfg.SMALong),
	}
	if len(closes) < cfg.SMALong {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("only %d closes, long window %d truncated", len(closes), cfg.SMALong))
	}

	ema := trimLeadingZeros(sanitizeSeries(talib.Ema(closes, min(21, len(closes)))))
	rep.Values["ema_fast"] = IndicatorValue{
		Latest: lastValid(ema),
		Series: ema,
		State:  relativeState(lastClose, lastValid(ema)),
		Note:   "EMA21 vs price",
	}

	rsiSeries := []float64{}
	if len(closes) > cfg.RSI {
		rsiSeries = sanitizeSeries(talib.Rsi(closes, cfg.RSI))
	}
	rsiVal := lastValid(rsiSeries)
	rsiState := "neutral"
	switch {
	case rsiVal >= 70:
		rsiState = "overbought"
	case rsiVal <= 30:
		rsiState = "oversold"
	}
	rep.Values["rsi"] = IndicatorValue{
		Latest: rsiVal,
		Series: rsiSeries,
		State:  rsiState,
		Note:   fmt.Sprintf("period=%d thresholds=30.0/70.0", cfg.RSI),
	}

	var macdSeries, signalSeries, histSeries []float64
	if len(closes) > 34 {
		macd, signal, hist := talib.Macd(closes, 12, 26, 9)
		macdSeries = sanitizeSeries(macd)
		signalSeries = sanitizeSeries(signal)
		histSeries = sanitizeSeries(hist)
	}
	macdState := "flat"
	switch {
	case lastValid(histSeries) > 0:
		macdState = "bullish"
	case lastValid(histSeries) < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = IndicatorValue{
		Latest: lastValid(macdSeries),
		Series: histSeries,
		State:  macdState,
		Note:   fmt.Sprintf("signal=%.4f hist=%.4f", lastValid(signalSeries), lastValid(histSeries)),
	}

	rocSeries := []float64{}
	if len(closes) > 9 {
		rocSeries = sanitizeSeries(talib.Roc(closes, 9))
	}
	rocVal := lastValid(rocSeries)
	rep.Values["roc"] = IndicatorValue{
		Latest: rocVal,
		Series: rocSeries,
		State:  polarityState(rocVal),
		Note:   "period=9",
	}

	return rep, nil
}

func reverse(src []float64) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[len(src)-1-i] = v
	}
	return out
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, round4(v))
	}
	return out
}

// trimLeadingZeros drops talib's zero-seeded warmup values.
func trimLeadingZeros(series []float64) []float64 {
	start := 0
	for start < len(series) && math.Abs(series[start]) <= 1e-9 {
		start++
	}
	return series[start:]
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func polarityState(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
