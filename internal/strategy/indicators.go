package strategy

// Indicator helpers used by the entry evaluator. Price series arrive
// most-recent-first, exactly as the KIS daily-price endpoint returns them.
//
// Insufficient data never errors; each function returns a sentinel chosen so
// that downstream threshold comparisons fail closed:
//   SMA -> 0   (the sma == 0 branch refuses to buy)
//   RSI -> 50  (neither oversold nor overbought)

const defaultRSIPeriod = 14

// SMA returns the mean of the first period entries, or 0 when the series is
// shorter than period.
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	for _, p := range prices[:period] {
		sum += p
	}
	return sum / float64(period)
}

// RSI computes a Wilder RSI over the most recent period day-over-day
// changes. Returns 50 when fewer than period+1 prices are available, and
// 100 when the window contains no losses.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = defaultRSIPeriod
	}
	if len(prices) < period+1 {
		return 50
	}
	gains := 0.0
	losses := 0.0
	for i := 0; i < period; i++ {
		diff := prices[i] - prices[i+1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
