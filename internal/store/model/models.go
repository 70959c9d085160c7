package model

import "gorm.io/datatypes"

// TrailingStateModel maps to 'trailing_state'.
type TrailingStateModel struct {
	Symbol      string  `gorm:"column:symbol;primaryKey"`
	HighWater   float64 `gorm:"column:high_water"`
	LastUpdated int64   `gorm:"column:last_updated"`
}

func (TrailingStateModel) TableName() string { return "trailing_state" }

// CooldownStateModel maps to 'cooldown_state'.
type CooldownStateModel struct {
	Symbol      string `gorm:"column:symbol;primaryKey"`
	Reason      string `gorm:"column:reason"`
	TriggeredAt int64  `gorm:"column:triggered_at"`
}

func (CooldownStateModel) TableName() string { return "cooldown_state" }

// TradeRecordModel maps to 'trade_log'. Details carries the reason and any
// auxiliary numbers as JSON so the schema stays stable as summaries evolve.
type TradeRecordModel struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string         `gorm:"column:run_id;index"`
	Symbol     string         `gorm:"column:symbol;index"`
	Action     string         `gorm:"column:action"`
	Price      float64        `gorm:"column:price"`
	Quantity   int64          `gorm:"column:quantity"`
	ProfitRate *float64       `gorm:"column:profit_rate"`
	Details    datatypes.JSON `gorm:"column:details;type:TEXT"`
	Timestamp  int64          `gorm:"column:timestamp;index"`
}

func (TradeRecordModel) TableName() string { return "trade_log" }
