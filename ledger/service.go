package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cppla/carbontrack/catalog"
)

const (
	opCreate  = "create"
	opOffset  = "offset"
	opRedeem  = "redeem"
	opScan    = "scan"
	opCheckIn = "checkin"

	streakBadgeDays = 7
)

// maxOffsetTons bounds a single purchase so point costs stay in int64.
var maxOffsetTons = decimal.NewFromInt(1_000_000)

// Catalog is the read-only reference data the ledger validates against.
type Catalog interface {
	ResolveProduct(id string) (catalog.Product, bool)
	ResolveOffsetProject(id string) (catalog.OffsetProject, bool)
	ResolveReward(id string) (catalog.Reward, bool)
	Products() []catalog.Product
}

// Config holds the ledger's business constants.
type Config struct {
	PointsPerTon  int64
	WelcomeBonus  int64
	CheckInPoints int64
	HistoryLimit  int
	ScanFallback  FallbackPolicy
	// Latency simulates a slow catalog. It is spent before the account is
	// locked, never inside the critical section.
	Latency time.Duration
}

func DefaultConfig() Config {
	return Config{
		PointsPerTon:  100,
		WelcomeBonus:  100,
		CheckInPoints: 10,
		HistoryLimit:  DefaultHistoryLimit,
		ScanFallback:  FallbackRandom,
	}
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option       { return func(s *Service) { s.logger = l } }
func WithMetrics(m *Metrics) Option         { return func(s *Service) { s.metrics = m } }
func WithNotifier(n Notifier) Option        { return func(s *Service) { s.notifier = n } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRand replaces the source used by FallbackRandom.
func WithRand(intn func(int) int) Option { return func(s *Service) { s.intn = intn } }

// Service is the only writer of account records. Commands against one
// account are serialized; different accounts never contend.
type Service struct {
	catalog  Catalog
	repo     Repository
	cfg      Config
	logger   *zap.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
	intn     func(int) int

	mu      sync.Mutex
	handles map[string]*handle
}

// handle is an open account session. sem is a one-slot semaphore so lock
// acquisition can observe context cancellation.
type handle struct {
	sem      chan struct{}
	acct     Account
	closed   bool
	lastUsed atomic.Int64
}

func newHandle(acct Account, now time.Time) *handle {
	h := &handle{sem: make(chan struct{}, 1), acct: acct}
	h.lastUsed.Store(now.UnixNano())
	return h
}

func (h *handle) lock(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *handle) tryLock() bool {
	select {
	case h.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *handle) unlock() { <-h.sem }

func NewService(cat Catalog, repo Repository, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.PointsPerTon <= 0 {
		cfg.PointsPerTon = def.PointsPerTon
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.ScanFallback == "" {
		cfg.ScanFallback = def.ScanFallback
	}
	s := &Service{
		catalog: cat,
		repo:    repo,
		cfg:     cfg,
		now:     time.Now,
		handles: make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Config returns the constants the service was built with.
func (s *Service) Config() Config { return s.cfg }

// Create seeds a new account with the welcome bonus and the Early Adopter
// badge, then opens a session for it.
func (s *Service) Create(ctx context.Context, id, displayName string) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, ErrInvalidAccountID
	}
	now := s.now()
	acct := Account{
		ID:            id,
		DisplayName:   displayName,
		PointsBalance: s.cfg.WelcomeBonus,
		CarbonSavedKg: decimal.Zero,
		Badges:        []Badge{EarlyAdopterBadge(now)},
		ScanHistory:   []catalog.Product{},
		CreatedAt:     now,
	}
	entry := Entry{
		ID:            uuid.NewString(),
		AccountID:     id,
		Kind:          EntrySignup,
		PointsDelta:   s.cfg.WelcomeBonus,
		CarbonDeltaKg: decimal.Zero,
		Reference:     id,
		CreatedAt:     now,
	}
	if err := s.repo.CreateAccount(context.WithoutCancel(ctx), acct, entry); err != nil {
		s.metrics.observeCommand(opCreate, err)
		if errors.Is(err, ErrAccountExists) {
			return Account{}, err
		}
		s.logger.Error("create account failed", zap.String("account_id", id), zap.Error(err))
		return Account{}, fmt.Errorf("%w: create account: %v", ErrTransientUnavailable, err)
	}
	s.metrics.observeCommand(opCreate, nil)
	s.logger.Info("account created", zap.String("account_id", id), zap.Int64("welcome_bonus", s.cfg.WelcomeBonus))

	if err := s.Open(ctx, id); err != nil {
		return Account{}, err
	}
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return Account{}, err
	}
	s.announce(ctx, commit{acct: snap, entry: entry})
	return snap, nil
}

// Open loads an account into a session. Opening an open account is a no-op.
func (s *Service) Open(ctx context.Context, id string) error {
	if h := s.lookup(id); h != nil {
		h.lastUsed.Store(s.now().UnixNano())
		return nil
	}
	acct, err := s.repo.LoadAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: load account: %v", ErrTransientUnavailable, err)
	}

	s.mu.Lock()
	if _, ok := s.handles[id]; !ok {
		s.handles[id] = newHandle(acct, s.now())
		s.logger.Debug("account session opened", zap.String("account_id", id))
	}
	n := len(s.handles)
	s.mu.Unlock()
	s.metrics.setOpenAccounts(n)
	return nil
}

// Close ends the session once commands already holding the account have
// finished. The handle stays in the table until then, so Open cannot load
// the record mid-commit. Commands still waiting observe ErrAccountNotOpen.
func (s *Service) Close(id string) {
	h := s.lookup(id)
	if h == nil {
		return
	}
	h.sem <- struct{}{}
	h.closed = true
	n, dropped := s.drop(id, h)
	h.unlock()
	if !dropped {
		return
	}
	s.metrics.setOpenAccounts(n)
	s.logger.Debug("account session closed", zap.String("account_id", id))
}

// drop removes h from the session table if it is still the entry for id.
// The caller holds h.
func (s *Service) drop(id string, h *handle) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handles[id] != h {
		return len(s.handles), false
	}
	delete(s.handles, id)
	return len(s.handles), true
}

// Sweep closes sessions idle for longer than idle and returns how many were
// closed. Busy sessions are skipped.
func (s *Service) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle).UnixNano()

	s.mu.Lock()
	var stale []*handle
	for id, h := range s.handles {
		if h.lastUsed.Load() >= cutoff || !h.tryLock() {
			continue
		}
		h.closed = true
		delete(s.handles, id)
		stale = append(stale, h)
	}
	n := len(s.handles)
	s.mu.Unlock()

	for _, h := range stale {
		h.unlock()
	}
	if len(stale) > 0 {
		s.metrics.setOpenAccounts(n)
		s.logger.Info("idle account sessions closed", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Snapshot returns a copy of the committed record.
func (s *Service) Snapshot(ctx context.Context, id string) (Account, error) {
	h := s.lookup(id)
	if h == nil {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotOpen, id)
	}
	if err := h.lock(ctx); err != nil {
		return Account{}, err
	}
	defer h.unlock()
	if h.closed {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotOpen, id)
	}
	h.lastUsed.Store(s.now().UnixNano())
	return h.acct.clone(), nil
}

// Entries lists the account's journal, newest first.
func (s *Service) Entries(ctx context.Context, id string, limit int) ([]Entry, error) {
	entries, err := s.repo.ListEntries(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ErrTransientUnavailable, err)
	}
	return entries, nil
}

// OffsetRequest is a command to buy carbon offsets.
type OffsetRequest struct {
	ProjectID  string
	AmountTons decimal.Decimal
	Method     PaymentMethod
}

type OffsetReceipt struct {
	EntryID          string          `json:"entry_id"`
	ProjectID        string          `json:"project_id"`
	AmountTons       decimal.Decimal `json:"amount_tons"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PointsSpent      int64           `json:"points_spent"`
	TokenCost        decimal.Decimal `json:"token_cost"`
	NewPointsBalance int64           `json:"new_points_balance"`
	NewCarbonSavedKg decimal.Decimal `json:"new_carbon_saved_kg"`
}

// PurchaseOffset buys AmountTons of the project. Points cost PointsPerTon
// per ton and are re-checked against the balance while the account is held.
func (s *Service) PurchaseOffset(ctx context.Context, id string, req OffsetRequest) (OffsetReceipt, error) {
	amount := req.AmountTons
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) || amount.GreaterThan(maxOffsetTons) {
		return OffsetReceipt{}, s.reject(opOffset, id, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String()))
	}
	method, err := ParsePaymentMethod(string(req.Method))
	if err != nil {
		return OffsetReceipt{}, s.reject(opOffset, id, err)
	}
	if err := s.pause(ctx); err != nil {
		return OffsetReceipt{}, s.reject(opOffset, id, err)
	}
	project, ok := s.catalog.ResolveOffsetProject(req.ProjectID)
	if !ok {
		return OffsetReceipt{}, s.reject(opOffset, id, fmt.Errorf("%w: %s", ErrUnknownProject, req.ProjectID))
	}

	var pointsCost int64
	tokenCost := decimal.Zero
	switch method {
	case PayWithPoints:
		pointsCost = amount.Mul(decimal.NewFromInt(s.cfg.PointsPerTon)).Ceil().IntPart()
	case PayWithToken:
		tokenCost = amount.Mul(project.PricePerTon)
	}

	c, err := s.execute(ctx, opOffset, id, func(next *Account, _ time.Time) (Entry, error) {
		if err := next.debit(pointsCost); err != nil {
			return Entry{}, err
		}
		next.CarbonSavedKg = next.CarbonSavedKg.Add(amount)
		return Entry{
			Kind:          EntryOffset,
			PointsDelta:   -pointsCost,
			CarbonDeltaKg: amount,
			Reference:     project.ID,
			Detail:        project.Name,
		}, nil
	})
	if err != nil {
		return OffsetReceipt{}, err
	}
	s.announce(ctx, c)
	return OffsetReceipt{
		EntryID:          c.entry.ID,
		ProjectID:        project.ID,
		AmountTons:       amount,
		PaymentMethod:    method,
		PointsSpent:      pointsCost,
		TokenCost:        tokenCost,
		NewPointsBalance: c.acct.PointsBalance,
		NewCarbonSavedKg: c.acct.CarbonSavedKg,
	}, nil
}

type RedemptionReceipt struct {
	EntryID          string `json:"entry_id"`
	RewardID         string `json:"reward_id"`
	RewardName       string `json:"reward_name"`
	PointsSpent      int64  `json:"points_spent"`
	NewPointsBalance int64  `json:"new_points_balance"`
}

// RedeemReward exchanges points for an available reward.
func (s *Service) RedeemReward(ctx context.Context, id, rewardID string) (RedemptionReceipt, error) {
	if err := s.pause(ctx); err != nil {
		return RedemptionReceipt{}, s.reject(opRedeem, id, err)
	}
	reward, ok := s.catalog.ResolveReward(rewardID)
	if !ok {
		return RedemptionReceipt{}, s.reject(opRedeem, id, fmt.Errorf("%w: %s", ErrUnknownReward, rewardID))
	}
	if !reward.Available {
		return RedemptionReceipt{}, s.reject(opRedeem, id, fmt.Errorf("%w: %s", ErrRewardUnavailable, rewardID))
	}

	c, err := s.execute(ctx, opRedeem, id, func(next *Account, _ time.Time) (Entry, error) {
		if err := next.debit(reward.PointsCost); err != nil {
			return Entry{}, err
		}
		return Entry{
			Kind:          EntryRedemption,
			PointsDelta:   -reward.PointsCost,
			CarbonDeltaKg: decimal.Zero,
			Reference:     reward.ID,
			Detail:        reward.Name,
		}, nil
	})
	if err != nil {
		return RedemptionReceipt{}, err
	}
	s.announce(ctx, c)
	return RedemptionReceipt{
		EntryID:          c.entry.ID,
		RewardID:         reward.ID,
		RewardName:       reward.Name,
		PointsSpent:      reward.PointsCost,
		NewPointsBalance: c.acct.PointsBalance,
	}, nil
}

type ScanResult struct {
	Product     catalog.Product   `json:"product"`
	Code        string            `json:"code"`
	Fallback    bool              `json:"fallback"`
	ScanHistory []catalog.Product `json:"scan_history"`
}

// RegisterScan records a scanned product. Unknown codes are handled by the
// configured FallbackPolicy.
func (s *Service) RegisterScan(ctx context.Context, id, code string) (ScanResult, error) {
	code = strings.TrimSpace(code)
	if err := s.pause(ctx); err != nil {
		return ScanResult{}, s.reject(opScan, id, err)
	}
	product, ok := s.catalog.ResolveProduct(code)
	fallback := false
	if !ok {
		product, ok = s.cfg.ScanFallback.pick(s.catalog.Products(), s.intn)
		if !ok {
			return ScanResult{}, s.reject(opScan, id, fmt.Errorf("%w: %q", ErrUnknownCode, code))
		}
		fallback = true
		s.metrics.observeFallback(s.cfg.ScanFallback)
		s.logger.Info("unknown scan code substituted",
			zap.String("account_id", id),
			zap.String("code", code),
			zap.String("policy", string(s.cfg.ScanFallback)),
			zap.String("product_id", product.ID),
		)
	}

	c, err := s.execute(ctx, opScan, id, func(next *Account, _ time.Time) (Entry, error) {
		next.pushScan(product, s.cfg.HistoryLimit)
		return Entry{
			Kind:          EntryScan,
			CarbonDeltaKg: decimal.Zero,
			Reference:     product.ID,
			Detail:        code,
		}, nil
	})
	if err != nil {
		return ScanResult{}, err
	}
	s.announce(ctx, c)
	return ScanResult{
		Product:     product,
		Code:        code,
		Fallback:    fallback,
		ScanHistory: c.acct.ScanHistory,
	}, nil
}

type CheckInReceipt struct {
	EntryID          string  `json:"entry_id"`
	PointsAwarded    int64   `json:"points_awarded"`
	StreakDays       int     `json:"streak_days"`
	NewPointsBalance int64   `json:"new_points_balance"`
	BadgesEarned     []Badge `json:"badges_earned"`
}

// RecordCheckIn awards the daily check-in points once per calendar day and
// maintains the streak.
func (s *Service) RecordCheckIn(ctx context.Context, id string) (CheckInReceipt, error) {
	points := s.cfg.CheckInPoints
	c, err := s.execute(ctx, opCheckIn, id, func(next *Account, now time.Time) (Entry, error) {
		streak := 1
		if last := next.LastCheckInAt; last != nil {
			if isSameDay(*last, now) {
				return Entry{}, ErrAlreadyCheckedIn
			}
			if isYesterday(*last, now) {
				streak = next.StreakDays + 1
			}
		}
		next.StreakDays = streak
		next.PointsBalance += points
		at := now
		next.LastCheckInAt = &at
		if streak >= streakBadgeDays {
			next.awardBadge(StreakMasterBadge(now))
		}
		return Entry{
			Kind:          EntryCheckIn,
			PointsDelta:   points,
			CarbonDeltaKg: decimal.Zero,
			Reference:     now.Format("2006-01-02"),
		}, nil
	})
	if err != nil {
		return CheckInReceipt{}, err
	}
	s.announce(ctx, c)
	return CheckInReceipt{
		EntryID:          c.entry.ID,
		PointsAwarded:    points,
		StreakDays:       c.acct.StreakDays,
		NewPointsBalance: c.acct.PointsBalance,
		BadgesEarned:     c.newBadges,
	}, nil
}

type commit struct {
	acct      Account
	entry     Entry
	newBadges []Badge
}

// execute runs mutate against a copy of the record while holding the
// account, checks the invariants, persists, and only then swaps the copy in.
// Once the account is held the commit ignores caller cancellation.
// Callers announce the commit after execute has released the account.
func (s *Service) execute(ctx context.Context, op, id string, mutate func(next *Account, now time.Time) (Entry, error)) (commit, error) {
	h := s.lookup(id)
	if h == nil {
		return commit{}, s.reject(op, id, fmt.Errorf("%w: %s", ErrAccountNotOpen, id))
	}

	waitStart := time.Now()
	if err := h.lock(ctx); err != nil {
		return commit{}, s.reject(op, id, err)
	}
	defer h.unlock()
	s.metrics.observeLockWait(op, time.Since(waitStart))

	if h.closed {
		return commit{}, s.reject(op, id, fmt.Errorf("%w: %s", ErrAccountNotOpen, id))
	}

	start := time.Now()
	defer func() { s.metrics.observeCommit(op, time.Since(start)) }()

	now := s.now()
	prev := h.acct
	next := prev.clone()
	entry, err := mutate(&next, now)
	if err != nil {
		return commit{}, s.reject(op, id, err)
	}
	if err := checkTransition(prev, next, s.cfg.HistoryLimit); err != nil {
		s.logger.Error("ledger invariant check failed", zap.String("account_id", id), zap.String("op", op), zap.Error(err))
		s.metrics.observeCommand(op, err)
		return commit{}, err
	}

	entry.ID = uuid.NewString()
	entry.AccountID = id
	entry.CreatedAt = now
	if err := s.repo.CommitAccount(context.WithoutCancel(ctx), next, entry); err != nil {
		s.logger.Error("ledger commit failed", zap.String("account_id", id), zap.String("op", op), zap.Error(err))
		if errors.Is(err, ErrStaleAccount) {
			// the next Open reloads the stored record
			h.closed = true
			if n, ok := s.drop(id, h); ok {
				s.metrics.setOpenAccounts(n)
			}
			err = fmt.Errorf("%w: %s: %w", ErrTransientUnavailable, op, err)
		} else {
			err = fmt.Errorf("%w: %s: %v", ErrTransientUnavailable, op, err)
		}
		s.metrics.observeCommand(op, err)
		return commit{}, err
	}

	h.acct = next
	h.lastUsed.Store(now.UnixNano())
	s.metrics.observeCommand(op, nil)

	c := commit{acct: next.clone(), entry: entry}
	if len(next.Badges) > len(prev.Badges) {
		c.newBadges = append([]Badge(nil), next.Badges[len(prev.Badges):]...)
	}
	s.logger.Info("ledger command committed",
		zap.String("account_id", id),
		zap.String("op", op),
		zap.String("entry_id", entry.ID),
		zap.Int64("points_delta", entry.PointsDelta),
		zap.Int64("points_balance", next.PointsBalance),
	)

	return c, nil
}

func (s *Service) lookup(id string) *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[id]
}

func (s *Service) reject(op, id string, err error) error {
	s.metrics.observeCommand(op, err)
	fields := []zap.Field{zap.String("account_id", id), zap.String("op", op), zap.String("reason", reason(err)), zap.Error(err)}
	switch KindOf(err) {
	case KindValidation, KindInternal:
		s.logger.Warn("ledger command rejected", fields...)
	default:
		s.logger.Info("ledger command rejected", fields...)
	}
	return err
}

func (s *Service) pause(ctx context.Context) error {
	if s.cfg.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.cfg.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isSameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func isYesterday(last, today time.Time) bool {
	today = today.In(last.Location())
	y := time.Date(today.Year(), today.Month(), today.Day()-1, 0, 0, 0, 0, today.Location())
	return last.Year() == y.Year() && last.YearDay() == y.YearDay()
}
