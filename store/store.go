package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/carbontrack/catalog"
	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/models"
)

// Store persists ledger accounts and notification feeds with gorm. Each
// commit writes the account row, its badges, its scan history and the
// journal entry in one transaction.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that own other tables.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) CreateAccount(ctx context.Context, acct ledger.Account, entry ledger.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("id = ?", acct.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ledger.ErrAccountExists, acct.ID)
		}
		row := accountRow(acct)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := insertBadges(tx, acct.ID, acct.Badges, 0); err != nil {
			return err
		}
		if err := replaceScans(tx, acct.ID, acct.ScanHistory); err != nil {
			return err
		}
		return insertEntry(tx, entry)
	})
}

func (s *Store) LoadAccount(ctx context.Context, id string) (ledger.Account, error) {
	db := s.db.WithContext(ctx)

	var row models.Account
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
		}
		return ledger.Account{}, err
	}

	var badges []models.AccountBadge
	if err := db.Where("account_id = ?", id).Order("position ASC").Find(&badges).Error; err != nil {
		return ledger.Account{}, err
	}
	var scans []models.ScanRecord
	if err := db.Where("account_id = ?", id).Order("position ASC").Find(&scans).Error; err != nil {
		return ledger.Account{}, err
	}
	rank, err := s.RankOf(ctx, row.CarbonSavedKg)
	if err != nil {
		return ledger.Account{}, err
	}

	acct := ledger.Account{
		ID:            row.ID,
		DisplayName:   row.DisplayName,
		PointsBalance: row.PointsBalance,
		CarbonSavedKg: row.CarbonSavedKg,
		StreakDays:    row.StreakDays,
		Rank:          rank,
		Badges:        make([]ledger.Badge, 0, len(badges)),
		ScanHistory:   make([]catalog.Product, 0, len(scans)),
		LastCheckInAt: row.LastCheckInAt,
		CreatedAt:     row.CreatedAt,
	}
	for _, b := range badges {
		acct.Badges = append(acct.Badges, ledger.Badge{ID: b.BadgeID, Name: b.Name, Description: b.Description, EarnedAt: b.EarnedAt})
	}
	for _, sc := range scans {
		acct.ScanHistory = append(acct.ScanHistory, catalog.Product{
			ID:                sc.ProductID,
			Name:              sc.Name,
			Manufacturer:      sc.Manufacturer,
			Category:          sc.Category,
			CarbonFootprintKg: sc.CarbonFootprintKg,
			ImageURL:          sc.ImageURL,
		})
	}
	if len(acct.ScanHistory) > 0 {
		last := acct.ScanHistory[0]
		acct.LastScanned = &last
	}
	return acct, nil
}

func (s *Store) CommitAccount(ctx context.Context, acct ledger.Account, entry ledger.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, "id = ?", acct.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ledger.ErrNotFound, acct.ID)
			}
			return err
		}
		points, carbon := ledger.PriorBalances(acct, entry)
		if current.PointsBalance != points || !current.CarbonSavedKg.Equal(carbon) {
			return fmt.Errorf("%w: %s has %d points, commit expected %d", ledger.ErrStaleAccount, acct.ID, current.PointsBalance, points)
		}

		if err := tx.Model(&models.Account{}).Where("id = ?", acct.ID).Updates(map[string]interface{}{
			"display_name":     acct.DisplayName,
			"points_balance":   acct.PointsBalance,
			"carbon_saved_kg":  acct.CarbonSavedKg,
			"streak_days":      acct.StreakDays,
			"last_check_in_at": acct.LastCheckInAt,
			"updated_at":       entry.CreatedAt,
		}).Error; err != nil {
			return err
		}

		var have int64
		if err := tx.Model(&models.AccountBadge{}).Where("account_id = ?", acct.ID).Count(&have).Error; err != nil {
			return err
		}
		if int(have) < len(acct.Badges) {
			if err := insertBadges(tx, acct.ID, acct.Badges[have:], int(have)); err != nil {
				return err
			}
		}

		if entry.Kind == ledger.EntryScan {
			if err := replaceScans(tx, acct.ID, acct.ScanHistory); err != nil {
				return err
			}
		}
		return insertEntry(tx, entry)
	})
}

func (s *Store) ListEntries(ctx context.Context, accountID string, limit int) ([]ledger.Entry, error) {
	q := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.LedgerEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.Entry{
			ID:            r.ID,
			AccountID:     r.AccountID,
			Kind:          ledger.EntryKind(r.Kind),
			PointsDelta:   r.PointsDelta,
			CarbonDeltaKg: r.CarbonDeltaKg,
			Reference:     r.Reference,
			Detail:        r.Detail,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

// RankOf is 1 + the number of accounts that saved strictly more carbon.
func (s *Store) RankOf(ctx context.Context, carbonSaved decimal.Decimal) (int, error) {
	var ahead int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("carbon_saved_kg > ?", carbonSaved).
		Count(&ahead).Error; err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

func accountRow(acct ledger.Account) models.Account {
	created := acct.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return models.Account{
		ID:            acct.ID,
		DisplayName:   acct.DisplayName,
		PointsBalance: acct.PointsBalance,
		CarbonSavedKg: acct.CarbonSavedKg,
		StreakDays:    acct.StreakDays,
		LastCheckInAt: acct.LastCheckInAt,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func insertBadges(tx *gorm.DB, accountID string, badges []ledger.Badge, offset int) error {
	if len(badges) == 0 {
		return nil
	}
	rows := make([]models.AccountBadge, 0, len(badges))
	for i, b := range badges {
		rows = append(rows, models.AccountBadge{
			AccountID:   accountID,
			BadgeID:     b.ID,
			Position:    offset + i,
			Name:        b.Name,
			Description: b.Description,
			EarnedAt:    b.EarnedAt,
		})
	}
	return tx.Create(&rows).Error
}

func replaceScans(tx *gorm.DB, accountID string, history []catalog.Product) error {
	if err := tx.Where("account_id = ?", accountID).Delete(&models.ScanRecord{}).Error; err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	rows := make([]models.ScanRecord, 0, len(history))
	for i, p := range history {
		rows = append(rows, models.ScanRecord{
			AccountID:         accountID,
			Position:          i,
			ProductID:         p.ID,
			Name:              p.Name,
			Manufacturer:      p.Manufacturer,
			Category:          p.Category,
			CarbonFootprintKg: p.CarbonFootprintKg,
			ImageURL:          p.ImageURL,
		})
	}
	return tx.Create(&rows).Error
}

func insertEntry(tx *gorm.DB, e ledger.Entry) error {
	row := models.LedgerEntry{
		ID:            e.ID,
		AccountID:     e.AccountID,
		Kind:          string(e.Kind),
		PointsDelta:   e.PointsDelta,
		CarbonDeltaKg: e.CarbonDeltaKg,
		Reference:     e.Reference,
		Detail:        e.Detail,
		CreatedAt:     e.CreatedAt,
	}
	return tx.Create(&row).Error
}
