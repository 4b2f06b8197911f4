package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cppla/carbontrack/catalog"
)

// DefaultHistoryLimit bounds the scan history kept on an account.
const DefaultHistoryLimit = 10

// Badge ids are stable; names are display text.
const (
	BadgeEarlyAdopter = "badge1"
	BadgeStreakMaster = "badge2"
)

// Badge is an achievement. Badges are append-only on an account.
type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earned_at"`
}

// Account is the per-user aggregate the ledger owns.
type Account struct {
	ID            string            `json:"id"`
	DisplayName   string            `json:"display_name"`
	PointsBalance int64             `json:"points_balance"`
	CarbonSavedKg decimal.Decimal   `json:"carbon_saved_kg"`
	StreakDays    int               `json:"streak_days"`
	Rank          int               `json:"rank"`
	Badges        []Badge           `json:"badges"`
	ScanHistory   []catalog.Product `json:"scan_history"`
	LastScanned   *catalog.Product  `json:"last_scanned,omitempty"`
	LastCheckInAt *time.Time        `json:"last_check_in_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (a Account) clone() Account {
	out := a
	out.Badges = append([]Badge(nil), a.Badges...)
	out.ScanHistory = append([]catalog.Product(nil), a.ScanHistory...)
	if a.LastScanned != nil {
		p := *a.LastScanned
		out.LastScanned = &p
	}
	if a.LastCheckInAt != nil {
		t := *a.LastCheckInAt
		out.LastCheckInAt = &t
	}
	return out
}

// HasBadge reports whether the badge id was already earned.
func (a Account) HasBadge(id string) bool {
	for _, b := range a.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

func (a *Account) awardBadge(b Badge) bool {
	if a.HasBadge(b.ID) {
		return false
	}
	a.Badges = append(a.Badges, b)
	return true
}

func (a *Account) debit(points int64) error {
	if points < 0 {
		return ErrInvalidAmount
	}
	if points > a.PointsBalance {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, points, a.PointsBalance)
	}
	a.PointsBalance -= points
	return nil
}

func (a *Account) pushScan(p catalog.Product, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	history := make([]catalog.Product, 0, min(len(a.ScanHistory)+1, limit))
	history = append(history, p)
	for _, prev := range a.ScanHistory {
		if len(history) == limit {
			break
		}
		history = append(history, prev)
	}
	a.ScanHistory = history
	last := p
	a.LastScanned = &last
}

// checkTransition verifies the invariants that must hold between a committed
// record and its successor.
func checkTransition(prev, next Account, limit int) error {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if next.ID != prev.ID {
		return fmt.Errorf("%w: id changed", ErrInvariant)
	}
	if next.PointsBalance < 0 {
		return fmt.Errorf("%w: negative balance %d", ErrInvariant, next.PointsBalance)
	}
	if next.CarbonSavedKg.LessThan(prev.CarbonSavedKg) {
		return fmt.Errorf("%w: carbon saved decreased", ErrInvariant)
	}
	if len(next.ScanHistory) > limit {
		return fmt.Errorf("%w: scan history has %d entries", ErrInvariant, len(next.ScanHistory))
	}
	if len(next.Badges) < len(prev.Badges) {
		return fmt.Errorf("%w: badge removed", ErrInvariant)
	}
	seen := make(map[string]struct{}, len(next.Badges))
	for i, b := range next.Badges {
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: duplicate badge %s", ErrInvariant, b.ID)
		}
		seen[b.ID] = struct{}{}
		if i < len(prev.Badges) && prev.Badges[i].ID != b.ID {
			return fmt.Errorf("%w: badge order changed", ErrInvariant)
		}
	}
	return nil
}

// EarlyAdopterBadge is granted at signup.
func EarlyAdopterBadge(at time.Time) Badge {
	return Badge{ID: BadgeEarlyAdopter, Name: "Early Adopter", Description: "Joined in the first month of launch", EarnedAt: at}
}

// StreakMasterBadge is granted on reaching a 7-day streak.
func StreakMasterBadge(at time.Time) Badge {
	return Badge{ID: BadgeStreakMaster, Name: "Streak Master", Description: "Maintained a 7-day streak", EarnedAt: at}
}
