package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/models"
	"github.com/cppla/carbontrack/notify"
)

// DemoSeed describes the demo login created on an empty install.
type DemoSeed struct {
	Username     string
	PasswordHash string
	AccountID    string
	Now          time.Time
}

// SeedDemo creates the demo user with a populated account and a few
// notifications. It reports false when the user already exists.
func (s *Store) SeedDemo(ctx context.Context, seed DemoSeed) (bool, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where("username = ?", seed.Username).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	now := seed.Now
	if now.IsZero() {
		now = time.Now()
	}
	lastCheckIn := now.Add(-24 * time.Hour)
	acct := ledger.Account{
		ID:            seed.AccountID,
		DisplayName:   "Alex Johnson",
		PointsBalance: 2350,
		CarbonSavedKg: decimal.RequireFromString("142.5"),
		StreakDays:    7,
		Badges: []ledger.Badge{
			ledger.EarlyAdopterBadge(now.AddDate(0, -1, 0)),
			ledger.StreakMasterBadge(lastCheckIn),
		},
		LastCheckInAt: &lastCheckIn,
		CreatedAt:     now.AddDate(0, -1, 0),
	}
	entry := ledger.Entry{
		ID:            "seed-" + seed.AccountID,
		AccountID:     seed.AccountID,
		Kind:          ledger.EntrySignup,
		PointsDelta:   acct.PointsBalance,
		CarbonDeltaKg: acct.CarbonSavedKg,
		Reference:     "demo",
		CreatedAt:     now,
	}
	notes := []notify.Notification{
		{ID: seed.AccountID + "-n1", Category: notify.CategoryStreak, Title: "Keep Your Streak Going!", Message: "You're on a 7-day streak. Log in tomorrow to keep it going!", CreatedAt: now.Add(-time.Hour)},
		{ID: seed.AccountID + "-n2", Category: notify.CategoryChallenge, Title: "New Weekly Challenge", Message: "Scan 5 products this week to earn 250 bonus points", CreatedAt: now.Add(-24 * time.Hour)},
		{ID: seed.AccountID + "-n3", Category: notify.CategorySystem, Title: "New Offset Project Available", Message: "Check out our new mangrove restoration project in Indonesia", Read: true, CreatedAt: now.Add(-48 * time.Hour)},
	}

	if err := s.CreateAccount(ctx, acct, entry); err != nil {
		return false, err
	}
	for _, n := range notes {
		if err := s.SaveNotification(ctx, seed.AccountID, n); err != nil {
			return false, err
		}
	}
	user := models.User{
		Username:     seed.Username,
		Email:        "alex@example.com",
		DisplayName:  acct.DisplayName,
		PasswordHash: seed.PasswordHash,
		AccountID:    seed.AccountID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}
