package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/carbontrack/catalog"
	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/models"
	"github.com/cppla/carbontrack/notify"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// one connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newAccount(id string, carbon string) ledger.Account {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return ledger.Account{
		ID:            id,
		PointsBalance: 100,
		CarbonSavedKg: decimal.RequireFromString(carbon),
		Badges:        []ledger.Badge{ledger.EarlyAdopterBadge(now)},
		CreatedAt:     now,
	}
}

func signupEntry(id string) ledger.Entry {
	return ledger.Entry{ID: "e-" + id, AccountID: id, Kind: ledger.EntrySignup, PointsDelta: 100, CreatedAt: time.Now()}
}

func TestCreateAndLoad(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("a", "0"), signupEntry("a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateAccount(ctx, newAccount("a", "0"), signupEntry("a2")); !errors.Is(err, ledger.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	got, err := s.LoadAccount(ctx, "a")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.PointsBalance != 100 || len(got.Badges) != 1 || got.Badges[0].ID != ledger.BadgeEarlyAdopter || got.Rank != 1 {
		t.Fatalf("unexpected account %+v", got)
	}

	if _, err := s.LoadAccount(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitPersistsHistoryBadgesAndJournal(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	if err := s.CreateAccount(ctx, newAccount("a", "0"), signupEntry("a")); err != nil {
		t.Fatal(err)
	}

	acct, _ := s.LoadAccount(ctx, "a")
	acct.ScanHistory = []catalog.Product{
		{ID: "PROD456", Name: "Organic Cotton T-shirt", CarbonFootprintKg: decimal.RequireFromString("5.1")},
		{ID: "PROD123", Name: "Eco-friendly Water Bottle", CarbonFootprintKg: decimal.RequireFromString("2.3")},
	}
	scan := ledger.Entry{ID: "e-scan", AccountID: "a", Kind: ledger.EntryScan, Reference: "PROD456", CreatedAt: time.Now()}
	if err := s.CommitAccount(ctx, acct, scan); err != nil {
		t.Fatalf("commit scan: %v", err)
	}

	acct.PointsBalance = 0
	acct.CarbonSavedKg = decimal.RequireFromString("1.25")
	acct.Badges = append(acct.Badges, ledger.StreakMasterBadge(time.Now()))
	offset := ledger.Entry{ID: "e-offset", AccountID: "a", Kind: ledger.EntryOffset, PointsDelta: -100, CarbonDeltaKg: decimal.RequireFromString("1.25"), CreatedAt: time.Now()}
	if err := s.CommitAccount(ctx, acct, offset); err != nil {
		t.Fatalf("commit offset: %v", err)
	}

	got, err := s.LoadAccount(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.PointsBalance != 0 || !got.CarbonSavedKg.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("balances not persisted: %+v", got)
	}
	if len(got.ScanHistory) != 2 || got.ScanHistory[0].ID != "PROD456" || got.LastScanned == nil || got.LastScanned.ID != "PROD456" {
		t.Fatalf("scan history not persisted: %+v", got.ScanHistory)
	}
	if len(got.Badges) != 2 || got.Badges[1].ID != ledger.BadgeStreakMaster {
		t.Fatalf("badges not persisted: %+v", got.Badges)
	}

	entries, err := s.ListEntries(ctx, "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].ID != "e-offset" || entries[2].Kind != ledger.EntrySignup {
		t.Fatalf("unexpected journal %+v", entries)
	}
	if limited, _ := s.ListEntries(ctx, "a", 1); len(limited) != 1 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
}

func TestCommitUnknownAccount(t *testing.T) {
	s := New(openTestDB(t))
	err := s.CommitAccount(context.Background(), newAccount("ghost", "0"), signupEntry("ghost"))
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var n int64
	s.DB().Model(&models.LedgerEntry{}).Count(&n)
	if n != 0 {
		t.Fatalf("journal written for failed commit")
	}
}

func TestCommitRejectsStaleBalances(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	if err := s.CreateAccount(ctx, newAccount("a", "0"), signupEntry("a")); err != nil {
		t.Fatal(err)
	}
	acct, _ := s.LoadAccount(ctx, "a")

	spent := acct
	spent.PointsBalance = 40
	redeem := ledger.Entry{ID: "e-r1", AccountID: "a", Kind: ledger.EntryRedemption, PointsDelta: -60, CreatedAt: time.Now()}
	if err := s.CommitAccount(ctx, spent, redeem); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// same starting balance again: the row already moved to 40
	again := ledger.Entry{ID: "e-r2", AccountID: "a", Kind: ledger.EntryRedemption, PointsDelta: -60, CreatedAt: time.Now()}
	if err := s.CommitAccount(ctx, spent, again); !errors.Is(err, ledger.ErrStaleAccount) {
		t.Fatalf("expected ErrStaleAccount, got %v", err)
	}
	got, _ := s.LoadAccount(ctx, "a")
	if got.PointsBalance != 40 {
		t.Fatalf("balance = %d, want 40", got.PointsBalance)
	}
	if entries, _ := s.ListEntries(ctx, "a", 0); len(entries) != 2 {
		t.Fatalf("journal has %d entries, want 2", len(entries))
	}
}

func TestRank(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	for id, carbon := range map[string]string{"a": "10", "b": "142.5", "c": "10", "d": "0.5"} {
		if err := s.CreateAccount(ctx, newAccount(id, carbon), signupEntry(id)); err != nil {
			t.Fatal(err)
		}
	}
	want := map[string]int{"b": 1, "a": 2, "c": 2, "d": 4}
	for id, rank := range want {
		acct, err := s.LoadAccount(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if acct.Rank != rank {
			t.Errorf("rank(%s) = %d, want %d", id, acct.Rank, rank)
		}
	}
}

func TestFeedStore(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	center := notify.NewCenter(notify.WithStore(s))

	first, err := center.Push(ctx, "u", notify.Notification{Category: notify.CategorySystem, Title: "one", CreatedAt: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := center.Push(ctx, "u", notify.Notification{Category: notify.CategoryStreak, Title: "two"}); err != nil {
		t.Fatal(err)
	}
	if _, err := center.MarkRead(ctx, "u", first.ID); err != nil {
		t.Fatal(err)
	}

	fresh := notify.NewCenter(notify.WithStore(s))
	feed, err := fresh.Load(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(feed.Items) != 2 || feed.Items[0].Title != "two" || feed.UnreadCount != 1 {
		t.Fatalf("unexpected reloaded feed %+v", feed)
	}
	if _, err := fresh.MarkAllRead(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	rows, _ := s.LoadFeed(ctx, "u")
	for _, r := range rows {
		if !r.Read {
			t.Fatalf("notification %s not persisted as read", r.ID)
		}
	}
}

func TestLedgerOverStore(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	svc := ledger.NewService(catalog.Default(), s, ledger.DefaultConfig(), ledger.WithNotifier(notify.NewCenter(notify.WithStore(s))))

	if _, err := svc.Create(ctx, "acct", "Sam"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.PurchaseOffset(ctx, "acct", ledger.OffsetRequest{ProjectID: "proj1", AmountTons: decimal.RequireFromString("0.4"), Method: ledger.PayWithPoints})
		}()
	}
	wg.Wait()

	svc.Close("acct")
	if err := svc.Open(ctx, "acct"); err != nil {
		t.Fatal(err)
	}
	acct, err := svc.Snapshot(ctx, "acct")
	if err != nil {
		t.Fatal(err)
	}
	// 100 points buy two 0.4 t offsets at 40 points each
	if acct.PointsBalance != 20 || !acct.CarbonSavedKg.Equal(decimal.RequireFromString("0.8")) {
		t.Fatalf("reloaded account = %d points, %s kg", acct.PointsBalance, acct.CarbonSavedKg)
	}

	stats := s.Stats(ctx)
	if stats.AccountCount != 1 || stats.OffsetCount != 2 || !stats.TotalCarbonSavedKg.Equal(decimal.RequireFromString("0.8")) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSeedDemo(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	seed := DemoSeed{Username: "alex", PasswordHash: "x", AccountID: "demo-account"}

	created, err := s.SeedDemo(ctx, seed)
	if err != nil || !created {
		t.Fatalf("seed = (%v, %v)", created, err)
	}
	again, err := s.SeedDemo(ctx, seed)
	if err != nil || again {
		t.Fatalf("second seed = (%v, %v)", again, err)
	}

	acct, err := s.LoadAccount(ctx, "demo-account")
	if err != nil {
		t.Fatal(err)
	}
	if acct.PointsBalance != 2350 || acct.StreakDays != 7 || len(acct.Badges) != 2 {
		t.Fatalf("unexpected demo account %+v", acct)
	}
	feed, _ := s.LoadFeed(ctx, "demo-account")
	if len(feed) != 3 {
		t.Fatalf("demo notifications = %d", len(feed))
	}
}
