// Package runner executes one full strategy pass: exits for every open
// position first, then entry evaluation for every configured symbol. One
// symbol failing never stops the others; only auth and account-wide
// failures abort a run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"haru/internal/config/loader"
	"haru/internal/gateway/kis"
	"haru/internal/gateway/notifier"
	"haru/internal/ledger"
	"haru/internal/logger"
	"haru/internal/strategy"

	"github.com/google/uuid"
)

const smaShortWindow = 20

// ErrRunInFlight is returned when a trigger arrives while a run is active.
var ErrRunInFlight = errors.New("a run is already in flight")

// ErrDisabled is returned when runs are paused via the admin surface.
var ErrDisabled = errors.New("trading is disabled")

// MarketData supplies quotes and daily history.
type MarketData interface {
	Quote(ctx context.Context, symbol, exchange string) (float64, error)
	DailyCloses(ctx context.Context, symbol, exchange string, days int) ([]float64, error)
}

// Account supplies holdings and orderable cash.
type Account interface {
	Positions(ctx context.Context) ([]strategy.Position, error)
	BuyingPower(ctx context.Context, symbol, exchange string, price float64) (float64, error)
}

// Execution places orders.
type Execution interface {
	SubmitMarketOrder(ctx context.Context, symbol, exchange, side string, quantity int64) (string, error)
}

// StrategySource yields the strategy snapshot a run pins at its start.
type StrategySource interface {
	Snapshot() loader.Snapshot
}

// Runner owns the per-run orchestration and the enable switch.
type Runner struct {
	Market     MarketData
	Account    Account
	Exec       Execution
	Strategies StrategySource
	Trailing   *ledger.TrailingLedger
	Cooldowns  *ledger.CooldownLedger
	Trades     *ledger.TradeLog
	Notifier   notifier.TextNotifier

	enabled atomic.Bool
	runMu   sync.Mutex

	mu   sync.RWMutex
	last *RunSummary
}

func New(market MarketData, account Account, exec Execution, strategies StrategySource,
	trailing *ledger.TrailingLedger, cooldowns *ledger.CooldownLedger, trades *ledger.TradeLog,
	notify notifier.TextNotifier) *Runner {
	r := &Runner{
		Market:     market,
		Account:    account,
		Exec:       exec,
		Strategies: strategies,
		Trailing:   trailing,
		Cooldowns:  cooldowns,
		Trades:     trades,
		Notifier:   notify,
	}
	r.enabled.Store(true)
	return r
}

// Enable resumes runs. Disable pauses them; a run in flight finishes.
func (r *Runner) Enable()       { r.enabled.Store(true) }
func (r *Runner) Disable()      { r.enabled.Store(false) }
func (r *Runner) Enabled() bool { return r.enabled.Load() }

// LastSummary returns the most recent completed run, or nil.
func (r *Runner) LastSummary() *RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// RunOnce executes one complete pass. Exits are always evaluated before
// entries so cash freed by a close is visible to the same run's sizing.
func (r *Runner) RunOnce(ctx context.Context) (*RunSummary, error) {
	if !r.enabled.Load() {
		return nil, ErrDisabled
	}
	if !r.runMu.TryLock() {
		return nil, ErrRunInFlight
	}
	defer r.runMu.Unlock()

	snap := r.Strategies.Snapshot()
	summary := &RunSummary{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		Strategies: len(snap.Strategies),
		Version:    snap.Version,
	}
	logger.Infof("run %s: %d strategies (version %d)", shortID(summary.RunID), len(snap.Strategies), snap.Version)

	symbols := make([]string, 0, len(snap.Strategies))
	for sym := range snap.Strategies {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	positions, err := r.Account.Positions(ctx)
	if err != nil {
		summary.Fatal = err.Error()
		r.finish(ctx, summary)
		return summary, fmt.Errorf("loading positions failed: %w", err)
	}
	held := make(map[string]strategy.Position, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p
	}

	for _, sym := range symbols {
		if ctx.Err() != nil {
			summary.Fatal = ctx.Err().Error()
			break
		}
		pos, ok := held[sym]
		if !ok {
			continue
		}
		res, fatal := r.runExit(ctx, summary.RunID, sym, pos, snap.Strategies[sym])
		summary.Results = append(summary.Results, res)
		if res.Action.IsExit() && res.Err == "" {
			delete(held, sym)
		}
		if fatal != nil {
			summary.Fatal = fatal.Error()
			r.finish(ctx, summary)
			return summary, fatal
		}
	}

	for _, sym := range symbols {
		if ctx.Err() != nil {
			summary.Fatal = ctx.Err().Error()
			break
		}
		res, fatal := r.runEntry(ctx, summary.RunID, sym, snap.Strategies[sym], held)
		summary.Results = append(summary.Results, res)
		if fatal != nil {
			summary.Fatal = fatal.Error()
			r.finish(ctx, summary)
			return summary, fatal
		}
	}

	if err := r.Trades.Trim(ctx); err != nil {
		logger.Warnf("run %s: trade log trim failed: %v", shortID(summary.RunID), err)
	}
	r.finish(ctx, summary)
	return summary, nil
}

// runExit evaluates one open position against its exit rules and closes it
// when they say so. The returned error is non-nil only for auth failures,
// which doom every later call in the run.
func (r *Runner) runExit(ctx context.Context, runID, sym string, pos strategy.Position, cfg strategy.Config) (SymbolResult, error) {
	res := SymbolResult{Symbol: sym, Phase: "exit"}

	high, err := r.Trailing.Observe(ctx, sym, pos.AvgCost, pos.CurrentPrice)
	if err != nil {
		res.Action = strategy.ActionHold
		res.Err = fmt.Sprintf("trailing ledger: %v", err)
		return res, nil
	}
	verdict := strategy.EvaluateExit(pos, high, cfg)
	rate := verdict.ProfitRate
	res.Action = verdict.Action
	res.Reason = verdict.Reason
	res.Price = pos.CurrentPrice
	res.ProfitRate = &rate

	if !verdict.Action.IsExit() {
		logger.Debugf("%s: holding (%.2f%%, high %.2f%%)", sym, verdict.ProfitRate, verdict.HighProfitRate)
		return res, nil
	}

	orderID, err := r.Exec.SubmitMarketOrder(ctx, sym, cfg.Exchange, kis.SideSell, pos.Quantity)
	if err != nil {
		res.Err = err.Error()
		return res, authOnly(err)
	}
	res.OrderID = orderID
	res.Quantity = pos.Quantity
	logger.Infof("%s: %s x%d @ %.2f (%.2f%%), order %s",
		sym, verdict.Action, pos.Quantity, pos.CurrentPrice, verdict.ProfitRate, orderID)

	if err := r.Trailing.Clear(ctx, sym); err != nil {
		logger.Warnf("%s: clearing trailing state failed: %v", sym, err)
	}
	// A zero-hour cooldown is never checked, so recording one would leave
	// a row that nothing ever expires.
	if verdict.Action.IsProtectiveExit() && cfg.CooldownHours > 0 {
		if err := r.Cooldowns.Trigger(ctx, sym, string(verdict.Action)); err != nil {
			logger.Warnf("%s: recording cooldown failed: %v", sym, err)
		}
	}
	if err := r.Trades.Append(ctx, runID, sym, string(verdict.Action), pos.CurrentPrice, pos.Quantity, &rate, verdict.Reason); err != nil {
		logger.Warnf("%s: trade log append failed: %v", sym, err)
	}
	return res, nil
}

// runEntry evaluates one symbol for a new (or scout add-on) entry.
func (r *Runner) runEntry(ctx context.Context, runID, sym string, cfg strategy.Config, held map[string]strategy.Position) (SymbolResult, error) {
	res := SymbolResult{Symbol: sym, Phase: "entry"}

	if cfg.CooldownHours > 0 {
		status, err := r.Cooldowns.Check(ctx, sym, cfg.CooldownHours)
		if err != nil {
			res.Action = strategy.ActionNoBuy
			res.Err = fmt.Sprintf("cooldown ledger: %v", err)
			return res, nil
		}
		if status.Cooling {
			res.Action = strategy.ActionNoBuy
			res.Reason = status.Describe()
			return res, nil
		}
	}

	days := smaShortWindow
	if cfg.UseLongTrendFilter && cfg.LongTrendWindow > days {
		days = cfg.LongTrendWindow
	}
	if days < 15 { // RSI needs period+1 samples
		days = 15
	}
	closes, err := r.Market.DailyCloses(ctx, sym, cfg.Exchange, days)
	if err != nil {
		res.Action = strategy.ActionNoBuy
		res.Err = err.Error()
		return res, authOnly(err)
	}
	price, err := r.Market.Quote(ctx, sym, cfg.Exchange)
	if err != nil {
		res.Action = strategy.ActionNoBuy
		res.Err = err.Error()
		return res, authOnly(err)
	}

	in := strategy.EntryInputs{
		Price:    price,
		SMAShort: strategy.SMA(closes, smaShortWindow),
		SMALong:  strategy.SMA(closes, cfg.LongTrendWindow),
		RSI:      strategy.RSI(closes, 0),
	}
	sig := strategy.EvaluateEntry(in, cfg)
	res.Price = price
	res.Reason = sig.Reason

	if !sig.Buy {
		res.Action = strategy.ActionNoBuy
		return res, nil
	}
	if _, open := held[sym]; open && sig.Kind == strategy.BuyRegular {
		res.Action = strategy.ActionNoBuy
		res.Reason = "position already open"
		return res, nil
	}

	funds, err := r.Account.BuyingPower(ctx, sym, cfg.Exchange, price)
	if err != nil {
		res.Action = strategy.ActionNoBuy
		res.Err = err.Error()
		return res, authOnly(err)
	}
	qty, ok := strategy.SizeOrder(funds, price, sig.Kind, cfg.ScoutAllocationFraction)
	if !ok {
		res.Action = strategy.ActionNoBalance
		res.Reason = fmt.Sprintf("orderable %.2f below price %.2f", funds, price)
		return res, nil
	}

	orderID, err := r.Exec.SubmitMarketOrder(ctx, sym, cfg.Exchange, kis.SideBuy, qty)
	if err != nil {
		var oe *kis.OrderError
		if errors.As(err, &oe) && oe.InsufficientFunds {
			res.Action = strategy.ActionNoBalance
			res.Reason = "venue rejected: insufficient funds"
			return res, nil
		}
		res.Action = strategy.ActionNoBuy
		res.Err = err.Error()
		return res, authOnly(err)
	}
	res.Action = strategy.ActionBuy
	res.OrderID = orderID
	res.Quantity = qty
	logger.Infof("%s: BUY (%s) x%d @ %.2f, order %s", sym, sig.Kind, qty, price, orderID)

	if err := r.Trades.Append(ctx, runID, sym, string(strategy.ActionBuy), price, qty, nil, sig.Reason); err != nil {
		logger.Warnf("%s: trade log append failed: %v", sym, err)
	}
	return res, nil
}

// finish stamps the summary, stores it and pushes the notification.
func (r *Runner) finish(ctx context.Context, summary *RunSummary) {
	summary.FinishedAt = time.Now().UTC()
	r.mu.Lock()
	r.last = summary
	r.mu.Unlock()

	logger.Infof("run %s: finished, %d results, %d orders, took %s",
		shortID(summary.RunID), len(summary.Results), summary.Orders(),
		summary.FinishedAt.Sub(summary.StartedAt).Truncate(time.Millisecond))

	if r.Notifier == nil {
		return
	}
	if err := r.Notifier.SendStructured(summary.notification()); err != nil {
		logger.Warnf("run %s: notification failed: %v", shortID(summary.RunID), err)
	}
}

// authOnly passes through auth failures and swallows everything else. Auth
// errors poison every subsequent call, so the run stops instead of spamming
// the venue with doomed requests; any other error stays with its symbol.
func authOnly(err error) error {
	var ae *kis.AuthError
	if errors.As(err, &ae) {
		return err
	}
	return nil
}
