package kis

import "fmt"

// The error taxonomy mirrors the failure domains the runner cares about:
// market data and account errors isolate to one symbol (or one run phase),
// auth errors abort the run, and order errors carry an insufficient-funds
// flag the runner recodes as NO_BALANCE instead of a failure.

// AuthError covers token issuance failures. Fatal for the whole run.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("kis auth: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// MarketDataError covers quote and history failures for one symbol.
type MarketDataError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("kis market data (%s %s): %v", e.Op, e.Symbol, e.Err)
}
func (e *MarketDataError) Unwrap() error { return e.Err }

// AccountError covers balance and position lookups.
type AccountError struct {
	Op  string
	Err error
}

func (e *AccountError) Error() string { return fmt.Sprintf("kis account (%s): %v", e.Op, e.Err) }
func (e *AccountError) Unwrap() error { return e.Err }

// OrderError covers order submission. InsufficientFunds marks the
// recoverable sub-case: the venue rejected the order for lack of settled
// cash, which is a normal outcome, not a fault.
type OrderError struct {
	Symbol            string
	Side              string
	InsufficientFunds bool
	Err               error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("kis order (%s %s): %v", e.Side, e.Symbol, e.Err)
}
func (e *OrderError) Unwrap() error { return e.Err }
