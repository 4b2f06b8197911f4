package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Category of a notification.
type Category string

const (
	CategoryChallenge Category = "challenge"
	CategoryStreak    Category = "streak"
	CategorySystem    Category = "system"
)

func (c Category) valid() bool {
	switch c {
	case CategoryChallenge, CategoryStreak, CategorySystem:
		return true
	}
	return false
}

// Notification is immutable apart from Read.
type Notification struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrNotFound        = errors.New("notification not found")
	ErrInvalidCategory = errors.New("invalid notification category")
)

// FeedStore persists feeds. MarkRead must be idempotent.
type FeedStore interface {
	LoadFeed(ctx context.Context, userID string) ([]Notification, error)
	SaveNotification(ctx context.Context, userID string, n Notification) error
	MarkRead(ctx context.Context, userID string, ids []string) error
}

// Feed is a point-in-time view of a user's notifications, newest first.
type Feed struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unread_count"`
}

type feed struct {
	mu     sync.Mutex
	items  []Notification
	loaded bool
}

func (f *feed) unread() int {
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}

func (f *feed) view() Feed {
	return Feed{Items: append([]Notification(nil), f.items...), UnreadCount: f.unread()}
}

// Center tracks read state per user. The unread count is always derived
// from the list, never stored.
type Center struct {
	store   FeedStore
	logger  *zap.Logger
	latency time.Duration
	now     func() time.Time

	mu    sync.Mutex
	feeds map[string]*feed
}

type Option func(*Center)

func WithStore(s FeedStore) Option          { return func(c *Center) { c.store = s } }
func WithLogger(l *zap.Logger) Option       { return func(c *Center) { c.logger = l } }
func WithLatency(d time.Duration) Option    { return func(c *Center) { c.latency = d } }
func WithClock(now func() time.Time) Option { return func(c *Center) { c.now = now } }

func NewCenter(opts ...Option) *Center {
	c := &Center{feeds: make(map[string]*feed), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Load returns the user's feed, fetching it from the store on first use.
func (c *Center) Load(ctx context.Context, userID string) (Feed, error) {
	if err := c.pause(ctx); err != nil {
		return Feed{}, err
	}
	f, err := c.feed(ctx, userID)
	if err != nil {
		return Feed{}, err
	}
	defer f.mu.Unlock()
	return f.view(), nil
}

// UnreadCount recomputes the unread count from the list.
func (c *Center) UnreadCount(ctx context.Context, userID string) (int, error) {
	f, err := c.feed(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer f.mu.Unlock()
	return f.unread(), nil
}

// MarkRead marks one notification read and returns the new unread count.
// An already-read notification is a no-op; an unknown id is ErrNotFound.
func (c *Center) MarkRead(ctx context.Context, userID, id string) (int, error) {
	f, err := c.feed(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	idx := -1
	for i := range f.items {
		if f.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return f.unread(), fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.items[idx].Read {
		return f.unread(), nil
	}
	if c.store != nil {
		if err := c.store.MarkRead(context.WithoutCancel(ctx), userID, []string{id}); err != nil {
			return f.unread(), fmt.Errorf("mark notification read: %w", err)
		}
	}
	f.items[idx].Read = true
	return f.unread(), nil
}

// MarkAllRead marks every notification read. The returned count is 0.
func (c *Center) MarkAllRead(ctx context.Context, userID string) (int, error) {
	f, err := c.feed(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	var ids []string
	for _, it := range f.items {
		if !it.Read {
			ids = append(ids, it.ID)
		}
	}
	if len(ids) > 0 && c.store != nil {
		if err := c.store.MarkRead(context.WithoutCancel(ctx), userID, ids); err != nil {
			return f.unread(), fmt.Errorf("mark all notifications read: %w", err)
		}
	}
	for i := range f.items {
		f.items[i].Read = true
	}
	return f.unread(), nil
}

// Push appends a notification to the user's feed. ID and CreatedAt are
// filled in when empty.
func (c *Center) Push(ctx context.Context, userID string, n Notification) (Notification, error) {
	if !n.Category.valid() {
		return Notification{}, fmt.Errorf("%w: %q", ErrInvalidCategory, n.Category)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}

	f, err := c.feed(ctx, userID)
	if err != nil {
		return Notification{}, err
	}
	defer f.mu.Unlock()

	for _, it := range f.items {
		if it.ID == n.ID {
			return it, nil
		}
	}
	if c.store != nil {
		if err := c.store.SaveNotification(context.WithoutCancel(ctx), userID, n); err != nil {
			return Notification{}, fmt.Errorf("save notification: %w", err)
		}
	}
	f.items = append(f.items, n)
	sortNewestFirst(f.items)
	return n, nil
}

// Forget drops the cached feed for a user; the next Load re-reads the store.
func (c *Center) Forget(userID string) {
	c.mu.Lock()
	delete(c.feeds, userID)
	c.mu.Unlock()
}

// feed returns the user's feed locked. Callers must unlock it.
func (c *Center) feed(ctx context.Context, userID string) (*feed, error) {
	c.mu.Lock()
	f, ok := c.feeds[userID]
	if !ok {
		f = &feed{}
		c.feeds[userID] = f
	}
	c.mu.Unlock()

	f.mu.Lock()
	if f.loaded {
		return f, nil
	}
	if c.store != nil {
		items, err := c.store.LoadFeed(ctx, userID)
		if err != nil {
			f.mu.Unlock()
			c.logger.Warn("load notification feed failed", zap.String("user_id", userID), zap.Error(err))
			return nil, fmt.Errorf("load notification feed: %w", err)
		}
		f.items = append(f.items[:0], items...)
		sortNewestFirst(f.items)
	}
	f.loaded = true
	return f, nil
}

func (c *Center) pause(ctx context.Context) error {
	if c.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sortNewestFirst(items []Notification) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}
