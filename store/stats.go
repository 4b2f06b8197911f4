package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/models"
)

// Stats aggregates platform-wide ledger figures.
type Stats struct {
	AccountCount       int64           `json:"account_count"`
	TotalCarbonSavedKg decimal.Decimal `json:"total_carbon_saved_kg"`
	OffsetCount        int64           `json:"offset_count"`
	RedemptionCount    int64           `json:"redemption_count"`
	ScanCount          int64           `json:"scan_count"`
}

// Stats never fails as a whole; a failed aggregate reads as zero.
func (s *Store) Stats(ctx context.Context) Stats {
	db := s.db.WithContext(ctx)
	var out Stats

	if err := db.Model(&models.Account{}).Count(&out.AccountCount).Error; err != nil {
		out.AccountCount = 0
	}

	var sum struct {
		Total decimal.Decimal
	}
	if err := db.Model(&models.Account{}).
		Select("COALESCE(SUM(carbon_saved_kg), 0) AS total").
		Scan(&sum).Error; err != nil {
		sum.Total = decimal.Zero
	}
	out.TotalCarbonSavedKg = sum.Total

	count := func(kind ledger.EntryKind) int64 {
		var n int64
		if err := db.Model(&models.LedgerEntry{}).Where("kind = ?", string(kind)).Count(&n).Error; err != nil {
			return 0
		}
		return n
	}
	out.OffsetCount = count(ledger.EntryOffset)
	out.RedemptionCount = count(ledger.EntryRedemption)
	out.ScanCount = count(ledger.EntryScan)
	return out
}
