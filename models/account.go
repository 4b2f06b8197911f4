package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the persisted form of a ledger account record.
type Account struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	DisplayName   string          `gorm:"size:128" json:"display_name"`
	PointsBalance int64           `gorm:"not null;default:0" json:"points_balance"`
	CarbonSavedKg decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0;index" json:"carbon_saved_kg"`
	StreakDays    int             `gorm:"not null;default:0" json:"streak_days"`
	LastCheckInAt *time.Time      `json:"last_check_in_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AccountBadge rows are only ever inserted. Position keeps earn order.
type AccountBadge struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   string    `gorm:"size:36;not null;uniqueIndex:idx_account_badge" json:"account_id"`
	BadgeID     string    `gorm:"size:64;not null;uniqueIndex:idx_account_badge" json:"badge_id"`
	Position    int       `gorm:"not null" json:"position"`
	Name        string    `gorm:"size:128" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	EarnedAt    time.Time `json:"earned_at"`
}

// ScanRecord is one slot of the bounded scan history, position 0 newest.
// Product fields are copied so history survives catalog changes.
type ScanRecord struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	AccountID         string          `gorm:"size:36;not null;index:idx_scan_account_pos" json:"account_id"`
	Position          int             `gorm:"not null;index:idx_scan_account_pos" json:"position"`
	ProductID         string          `gorm:"size:64;not null" json:"product_id"`
	Name              string          `gorm:"size:255" json:"name"`
	Manufacturer      string          `gorm:"size:128" json:"manufacturer"`
	Category          string          `gorm:"size:64" json:"category"`
	CarbonFootprintKg decimal.Decimal `gorm:"type:decimal(20,4)" json:"carbon_footprint_kg"`
	ImageURL          string          `gorm:"size:512" json:"image_url"`
}
