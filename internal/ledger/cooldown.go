package ledger

import (
	"context"
	"fmt"
	"time"

	"haru/internal/store"
)

// CooldownLedger tracks time-boxed re-entry suppression per symbol.
type CooldownLedger struct {
	st  store.Store
	now func() time.Time
}

func NewCooldownLedger(st store.Store) *CooldownLedger {
	return &CooldownLedger{st: st, now: time.Now}
}

// CoolingStatus reports whether a symbol is barred from entry and why.
type CoolingStatus struct {
	Cooling   bool
	Reason    string
	Remaining time.Duration
}

// Describe renders the status for summaries and notifications.
func (s CoolingStatus) Describe() string {
	if !s.Cooling {
		return "not cooling"
	}
	return fmt.Sprintf("cooling after %s, %.1fh remaining", s.Reason, s.Remaining.Hours())
}

// Check reports whether symbol is still cooling. An expired record is
// deleted on the spot so stale rows never accumulate; the get-then-delete
// runs in one transaction.
func (l *CooldownLedger) Check(ctx context.Context, symbol string, cooldownHours int) (CoolingStatus, error) {
	var status CoolingStatus
	err := l.st.WithTx(ctx, func(tx store.Store) error {
		rec, err := tx.Cooldowns().Get(ctx, symbol)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		window := time.Duration(cooldownHours) * time.Hour
		elapsed := l.now().Sub(rec.TriggeredAt)
		if elapsed >= window {
			return tx.Cooldowns().Delete(ctx, symbol)
		}
		status = CoolingStatus{
			Cooling:   true,
			Reason:    rec.Reason,
			Remaining: window - elapsed,
		}
		return nil
	})
	if err != nil {
		return CoolingStatus{}, err
	}
	return status, nil
}

// Trigger records a protective exit. Take-profit exits never call this.
func (l *CooldownLedger) Trigger(ctx context.Context, symbol, reason string) error {
	return l.st.Cooldowns().Put(ctx, store.CooldownRecord{
		Symbol:      symbol,
		Reason:      reason,
		TriggeredAt: l.now(),
	})
}

// Clear removes a cooldown ahead of schedule (admin API).
func (l *CooldownLedger) Clear(ctx context.Context, symbol string) error {
	return l.st.Cooldowns().Delete(ctx, symbol)
}

// Snapshot lists all active records (admin API).
func (l *CooldownLedger) Snapshot(ctx context.Context) ([]store.CooldownRecord, error) {
	return l.st.Cooldowns().List(ctx)
}
