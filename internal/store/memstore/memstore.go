// Package memstore is an in-memory store.Store used by tests and dry runs.
package memstore

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"haru/internal/store"
)

// MemStore keeps all three ledgers in maps behind one mutex. WithTx holds
// the lock for the duration of fn and commits a copied view on success,
// matching the no-interleaving and rollback guarantees the SQLite store
// gets from transactions.
type MemStore struct {
	mu        sync.Mutex
	trailing  map[string]store.TrailingRecord
	cooldowns map[string]store.CooldownRecord
	trades    []store.TradeRecord
	nextID    int64
	inTx      bool
}

func New() *MemStore {
	return &MemStore{
		trailing:  make(map[string]store.TrailingRecord),
		cooldowns: make(map[string]store.CooldownRecord),
		trades:    nil,
		nextID:    1,
	}
}

func (s *MemStore) Trailing() store.TrailingRepository  { return memTrailing{s} }
func (s *MemStore) Cooldowns() store.CooldownRepository { return memCooldown{s} }
func (s *MemStore) Trades() store.TradeLogRepository    { return memTrades{s} }

// WithTx gives fn a copy-on-write view and commits it back only when fn
// succeeds, so a failed fn leaves the parent untouched.
func (s *MemStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &MemStore{
		trailing:  maps.Clone(s.trailing),
		cooldowns: maps.Clone(s.cooldowns),
		trades:    append([]store.TradeRecord(nil), s.trades...),
		nextID:    s.nextID,
		inTx:      true,
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.trailing = tx.trailing
	s.cooldowns = tx.cooldowns
	s.trades = tx.trades
	s.nextID = tx.nextID
	return nil
}

func (s *MemStore) Close() error { return nil }

var _ store.Store = (*MemStore)(nil)

func (s *MemStore) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *MemStore) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

func key(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

type memTrailing struct{ s *MemStore }

func (r memTrailing) Get(_ context.Context, symbol string) (*store.TrailingRecord, error) {
	r.s.lock()
	defer r.s.unlock()
	rec, ok := r.s.trailing[key(symbol)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memTrailing) Put(_ context.Context, rec store.TrailingRecord) error {
	r.s.lock()
	defer r.s.unlock()
	rec.Symbol = key(rec.Symbol)
	r.s.trailing[rec.Symbol] = rec
	return nil
}

func (r memTrailing) Delete(_ context.Context, symbol string) error {
	r.s.lock()
	defer r.s.unlock()
	delete(r.s.trailing, key(symbol))
	return nil
}

func (r memTrailing) List(_ context.Context) ([]store.TrailingRecord, error) {
	r.s.lock()
	defer r.s.unlock()
	out := make([]store.TrailingRecord, 0, len(r.s.trailing))
	for _, rec := range r.s.trailing {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

type memCooldown struct{ s *MemStore }

func (r memCooldown) Get(_ context.Context, symbol string) (*store.CooldownRecord, error) {
	r.s.lock()
	defer r.s.unlock()
	rec, ok := r.s.cooldowns[key(symbol)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memCooldown) Put(_ context.Context, rec store.CooldownRecord) error {
	r.s.lock()
	defer r.s.unlock()
	rec.Symbol = key(rec.Symbol)
	r.s.cooldowns[rec.Symbol] = rec
	return nil
}

func (r memCooldown) Delete(_ context.Context, symbol string) error {
	r.s.lock()
	defer r.s.unlock()
	delete(r.s.cooldowns, key(symbol))
	return nil
}

func (r memCooldown) List(_ context.Context) ([]store.CooldownRecord, error) {
	r.s.lock()
	defer r.s.unlock()
	out := make([]store.CooldownRecord, 0, len(r.s.cooldowns))
	for _, rec := range r.s.cooldowns {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

type memTrades struct{ s *MemStore }

func (r memTrades) Append(_ context.Context, rec store.TradeRecord) error {
	r.s.lock()
	defer r.s.unlock()
	rec.ID = r.s.nextID
	r.s.nextID++
	rec.Symbol = key(rec.Symbol)
	r.s.trades = append(r.s.trades, rec)
	return nil
}

func (r memTrades) Recent(_ context.Context, limit int) ([]store.TradeRecord, error) {
	r.s.lock()
	defer r.s.unlock()
	if limit <= 0 {
		limit = 100
	}
	n := len(r.s.trades)
	if limit > n {
		limit = n
	}
	out := make([]store.TradeRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.s.trades[i])
	}
	return out, nil
}

func (r memTrades) Prune(_ context.Context, keep int) error {
	r.s.lock()
	defer r.s.unlock()
	if keep <= 0 || len(r.s.trades) <= keep {
		return nil
	}
	kept := make([]store.TradeRecord, keep)
	copy(kept, r.s.trades[len(r.s.trades)-keep:])
	r.s.trades = kept
	return nil
}
