package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Run is one backtest execution.
type Run struct {
	ID          string `gorm:"primaryKey;size:36"`
	Instruments string `gorm:"size:512"`
	ConfigPath  string `gorm:"size:512"`
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// OrderEvent is a persisted order status event.
type OrderEvent struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	RunID        string          `gorm:"size:36;index:idx_order_event_run_seq"`
	Seq          uint64          `gorm:"index:idx_order_event_run_seq"`
	OrderID      string          `gorm:"size:64;index"`
	Status       string          `gorm:"size:32"`
	Instrument   string          `gorm:"size:64"`
	FilledQty    int64           `gorm:"not null"`
	FillPrice    decimal.Decimal `gorm:"type:decimal(20,8)"`
	RemainingQty int64           `gorm:"not null"`
	Message      string          `gorm:"size:256"`
	EventAt      time.Time
}

// PnLSnapshot is one instrument's row of a persisted book snapshot.
type PnLSnapshot struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	RunID         string `gorm:"size:36;index:idx_pnl_run_seq"`
	Seq           uint64 `gorm:"index:idx_pnl_run_seq"`
	Instrument    string `gorm:"size:64"`
	Net           int64
	Long          int64
	Short         int64
	RealizedPnL   decimal.Decimal `gorm:"type:decimal(20,8)"`
	UnrealizedPnL decimal.Decimal `gorm:"type:decimal(20,8)"`
	LastPrice     decimal.Decimal `gorm:"type:decimal(20,8)"`
	TakenAt       time.Time
}
