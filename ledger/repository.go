package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind names the command that produced a journal entry.
type EntryKind string

const (
	EntrySignup     EntryKind = "signup"
	EntryOffset     EntryKind = "offset"
	EntryRedemption EntryKind = "redemption"
	EntryScan       EntryKind = "scan"
	EntryCheckIn    EntryKind = "checkin"
)

// Entry is the journal record written atomically with every commit.
type Entry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Kind          EntryKind       `json:"kind"`
	PointsDelta   int64           `json:"points_delta"`
	CarbonDeltaKg decimal.Decimal `json:"carbon_delta_kg"`
	Reference     string          `json:"reference"`
	Detail        string          `json:"detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PriorBalances returns the balances acct held before entry was applied.
func PriorBalances(acct Account, entry Entry) (int64, decimal.Decimal) {
	return acct.PointsBalance - entry.PointsDelta, acct.CarbonSavedKg.Sub(entry.CarbonDeltaKg)
}

// Repository persists account records. CommitAccount must store the record
// and its entry atomically; a failed commit must leave nothing behind.
// CommitAccount rejects with ErrStaleAccount when the stored balances differ
// from PriorBalances(acct, entry).
type Repository interface {
	CreateAccount(ctx context.Context, acct Account, entry Entry) error
	LoadAccount(ctx context.Context, id string) (Account, error)
	CommitAccount(ctx context.Context, acct Account, entry Entry) error
	ListEntries(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

// MemoryRepository keeps records in process. Used when no database is
// configured and in tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	entries  map[string][]Entry

	// FailCommit, when set, is returned by CommitAccount instead of storing.
	FailCommit error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]Account),
		entries:  make(map[string][]Entry),
	}
}

func (m *MemoryRepository) CreateAccount(_ context.Context, acct Account, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, acct.ID)
	}
	m.accounts[acct.ID] = acct.clone()
	m.entries[acct.ID] = append(m.entries[acct.ID], entry)
	return nil
}

func (m *MemoryRepository) LoadAccount(_ context.Context, id string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := acct.clone()
	out.Rank = m.rankLocked(acct)
	return out, nil
}

func (m *MemoryRepository) CommitAccount(_ context.Context, acct Account, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommit != nil {
		return m.FailCommit
	}
	current, ok := m.accounts[acct.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, acct.ID)
	}
	points, carbon := PriorBalances(acct, entry)
	if current.PointsBalance != points || !current.CarbonSavedKg.Equal(carbon) {
		return fmt.Errorf("%w: %s", ErrStaleAccount, acct.ID)
	}
	m.accounts[acct.ID] = acct.clone()
	m.entries[acct.ID] = append(m.entries[acct.ID], entry)
	return nil
}

func (m *MemoryRepository) ListEntries(_ context.Context, accountID string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.entries[accountID]
	out := make([]Entry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// rankLocked is 1 + the number of accounts with strictly more carbon saved.
func (m *MemoryRepository) rankLocked(acct Account) int {
	saved := make([]decimal.Decimal, 0, len(m.accounts))
	for _, a := range m.accounts {
		saved = append(saved, a.CarbonSavedKg)
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].GreaterThan(saved[j]) })
	rank := 1
	for _, s := range saved {
		if !s.GreaterThan(acct.CarbonSavedKg) {
			break
		}
		rank++
	}
	return rank
}
