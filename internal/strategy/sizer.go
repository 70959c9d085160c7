package strategy

import "github.com/shopspring/decimal"

// SizeOrder converts available buying power into a whole-share quantity.
// Scout entries commit only the configured fraction of the balance. A zero
// quantity is reported as ok=false (NO_BALANCE): a real signal existed but
// capital did not cover one share, which is an expected outcome, not an
// error.
//
// The division is done in decimal so that cent-level funds never round a
// share in or out through float drift.
func SizeOrder(availableFunds, price float64, kind BuyKind, scoutFraction float64) (quantity int64, ok bool) {
	if availableFunds <= 0 || price <= 0 {
		return 0, false
	}
	funds := decimal.NewFromFloat(availableFunds)
	if kind == BuyScout {
		if scoutFraction <= 0 || scoutFraction > 1 {
			return 0, false
		}
		funds = funds.Mul(decimal.NewFromFloat(scoutFraction))
	}
	qty := funds.Div(decimal.NewFromFloat(price)).Floor().IntPart()
	if qty < 1 {
		return 0, false
	}
	return qty, true
}
