// Package gormstore is the durable ledger store: one SQLite file in WAL
// mode holding the trailing, cooldown and trade-log tables.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"haru/internal/store"
	storemodel "haru/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore implements store.Store on GORM + SQLite.
type GormStore struct {
	db *gorm.DB
}

// New opens (creating if needed) the ledger database at path.
func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: ledger path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&storemodel.TrailingStateModel{},
		&storemodel.CooldownStateModel{},
		&storemodel.TradeRecordModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: the admin HTTP reads may overlap a run; keep the pool
	// tiny so lock contention stays low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Trailing() store.TrailingRepository  { return trailingRepo{db: s.db} }
func (s *GormStore) Cooldowns() store.CooldownRepository { return cooldownRepo{db: s.db} }
func (s *GormStore) Trades() store.TradeLogRepository    { return tradeLogRepo{db: s.db} }

// WithTx runs fn against a transactional view of the store.
func (s *GormStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

var _ store.Store = (*GormStore)(nil)

// --------------------- trailing_state -------------------------

type trailingRepo struct {
	db *gorm.DB
}

func (r trailingRepo) Get(ctx context.Context, symbol string) (*store.TrailingRecord, error) {
	var m storemodel.TrailingStateModel
	err := r.db.WithContext(ctx).First(&m, "symbol = ?", normalizeSymbol(symbol)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := trailingFromModel(m)
	return &rec, nil
}

func (r trailingRepo) Put(ctx context.Context, rec store.TrailingRecord) error {
	m := storemodel.TrailingStateModel{
		Symbol:      normalizeSymbol(rec.Symbol),
		HighWater:   rec.HighWater,
		LastUpdated: rec.LastUpdated.Unix(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"high_water", "last_updated"}),
		}).
		Create(&m).Error
}

func (r trailingRepo) Delete(ctx context.Context, symbol string) error {
	return r.db.WithContext(ctx).
		Delete(&storemodel.TrailingStateModel{}, "symbol = ?", normalizeSymbol(symbol)).Error
}

func (r trailingRepo) List(ctx context.Context) ([]store.TrailingRecord, error) {
	var models []storemodel.TrailingStateModel
	if err := r.db.WithContext(ctx).Order("symbol").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.TrailingRecord, 0, len(models))
	for _, m := range models {
		out = append(out, trailingFromModel(m))
	}
	return out, nil
}

func trailingFromModel(m storemodel.TrailingStateModel) store.TrailingRecord {
	return store.TrailingRecord{
		Symbol:      m.Symbol,
		HighWater:   m.HighWater,
		LastUpdated: time.Unix(m.LastUpdated, 0),
	}
}

// --------------------- cooldown_state -------------------------

type cooldownRepo struct {
	db *gorm.DB
}

func (r cooldownRepo) Get(ctx context.Context, symbol string) (*store.CooldownRecord, error) {
	var m storemodel.CooldownStateModel
	err := r.db.WithContext(ctx).First(&m, "symbol = ?", normalizeSymbol(symbol)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := cooldownFromModel(m)
	return &rec, nil
}

func (r cooldownRepo) Put(ctx context.Context, rec store.CooldownRecord) error {
	m := storemodel.CooldownStateModel{
		Symbol:      normalizeSymbol(rec.Symbol),
		Reason:      rec.Reason,
		TriggeredAt: rec.TriggeredAt.Unix(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "triggered_at"}),
		}).
		Create(&m).Error
}

func (r cooldownRepo) Delete(ctx context.Context, symbol string) error {
	return r.db.WithContext(ctx).
		Delete(&storemodel.CooldownStateModel{}, "symbol = ?", normalizeSymbol(symbol)).Error
}

func (r cooldownRepo) List(ctx context.Context) ([]store.CooldownRecord, error) {
	var models []storemodel.CooldownStateModel
	if err := r.db.WithContext(ctx).Order("symbol").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.CooldownRecord, 0, len(models))
	for _, m := range models {
		out = append(out, cooldownFromModel(m))
	}
	return out, nil
}

func cooldownFromModel(m storemodel.CooldownStateModel) store.CooldownRecord {
	return store.CooldownRecord{
		Symbol:      m.Symbol,
		Reason:      m.Reason,
		TriggeredAt: time.Unix(m.TriggeredAt, 0),
	}
}

// --------------------- trade_log -------------------------

type tradeLogRepo struct {
	db *gorm.DB
}

type tradeDetails struct {
	Reason string `json:"reason,omitempty"`
}

func (r tradeLogRepo) Append(ctx context.Context, rec store.TradeRecord) error {
	details, err := json.Marshal(tradeDetails{Reason: rec.Reason})
	if err != nil {
		return err
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	m := storemodel.TradeRecordModel{
		RunID:      rec.RunID,
		Symbol:     normalizeSymbol(rec.Symbol),
		Action:     rec.Action,
		Price:      rec.Price,
		Quantity:   rec.Quantity,
		ProfitRate: rec.ProfitRate,
		Details:    datatypes.JSON(details),
		Timestamp:  ts.Unix(),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r tradeLogRepo) Recent(ctx context.Context, limit int) ([]store.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []storemodel.TradeRecordModel
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.TradeRecord, 0, len(models))
	for _, m := range models {
		var d tradeDetails
		_ = json.Unmarshal(m.Details, &d)
		out = append(out, store.TradeRecord{
			ID:         m.ID,
			RunID:      m.RunID,
			Symbol:     m.Symbol,
			Action:     m.Action,
			Price:      m.Price,
			Quantity:   m.Quantity,
			ProfitRate: m.ProfitRate,
			Reason:     d.Reason,
			Timestamp:  time.Unix(m.Timestamp, 0),
		})
	}
	return out, nil
}

func (r tradeLogRepo) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	// Delete everything older than the keep-th newest id.
	sub := r.db.WithContext(ctx).
		Model(&storemodel.TradeRecordModel{}).
		Select("id").
		Order("id DESC").
		Limit(keep)
	return r.db.WithContext(ctx).
		Where("id NOT IN (?)", sub).
		Delete(&storemodel.TradeRecordModel{}).Error
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
