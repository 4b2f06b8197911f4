package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry journals one committed ledger command. Seq gives a stable
// order for entries sharing a timestamp.
type LedgerEntry struct {
	Seq           uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	ID            string          `gorm:"size:36;not null;uniqueIndex" json:"id"`
	AccountID     string          `gorm:"size:36;not null;index:idx_entry_account_created" json:"account_id"`
	Kind          string          `gorm:"size:32;not null;index" json:"kind"`
	PointsDelta   int64           `json:"points_delta"`
	CarbonDeltaKg decimal.Decimal `gorm:"type:decimal(20,4)" json:"carbon_delta_kg"`
	Reference     string          `gorm:"size:64" json:"reference"`
	Detail        string          `gorm:"size:255" json:"detail"`
	CreatedAt     time.Time       `gorm:"index:idx_entry_account_created" json:"created_at"`
}
