package store

import (
	"context"
	"time"
)

// TrailingRecord is the persisted high-water mark for one open position.
type TrailingRecord struct {
	Symbol      string
	HighWater   float64
	LastUpdated time.Time
}

// CooldownRecord marks a symbol barred from re-entry after a protective exit.
type CooldownRecord struct {
	Symbol      string
	Reason      string
	TriggeredAt time.Time
}

// TradeRecord is one row of the append-only trade log.
type TradeRecord struct {
	ID         int64
	RunID      string
	Symbol     string
	Action     string
	Price      float64
	Quantity   int64
	ProfitRate *float64
	Reason     string
	Timestamp  time.Time
}

// TrailingRepository persists trailing high-water marks keyed by symbol.
type TrailingRepository interface {
	// Get returns nil when no record exists for the symbol.
	Get(ctx context.Context, symbol string) (*TrailingRecord, error)
	Put(ctx context.Context, rec TrailingRecord) error
	Delete(ctx context.Context, symbol string) error
	List(ctx context.Context) ([]TrailingRecord, error)
}

// CooldownRepository persists re-entry cooldowns keyed by symbol.
type CooldownRepository interface {
	Get(ctx context.Context, symbol string) (*CooldownRecord, error)
	Put(ctx context.Context, rec CooldownRecord) error
	Delete(ctx context.Context, symbol string) error
	List(ctx context.Context) ([]CooldownRecord, error)
}

// TradeLogRepository persists the capped trade log.
type TradeLogRepository interface {
	Append(ctx context.Context, rec TradeRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]TradeRecord, error)
	// Prune drops everything but the newest keep records.
	Prune(ctx context.Context, keep int) error
}

// Store is the entry point for ledger persistence.
type Store interface {
	Trailing() TrailingRepository
	Cooldowns() CooldownRepository
	Trades() TradeLogRepository

	// WithTx runs fn inside one transaction so a read-modify-write cycle
	// for a symbol cannot interleave with an overlapping run.
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
}
