package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu      sync.Mutex
	feeds   map[string][]Notification
	loads   int
	failOps bool
}

func newMemStore() *memStore { return &memStore{feeds: map[string][]Notification{}} }

func (m *memStore) LoadFeed(_ context.Context, userID string) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return append([]Notification(nil), m.feeds[userID]...), nil
}

func (m *memStore) SaveNotification(_ context.Context, userID string, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOps {
		return errors.New("store down")
	}
	m.feeds[userID] = append(m.feeds[userID], n)
	return nil
}

func (m *memStore) MarkRead(_ context.Context, userID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOps {
		return errors.New("store down")
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	for i, n := range m.feeds[userID] {
		if want[n.ID] {
			m.feeds[userID][i].Read = true
		}
	}
	return nil
}

func seeded(t *testing.T) (*Center, *memStore) {
	t.Helper()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newMemStore()
	s.feeds["u1"] = []Notification{
		{ID: "notif3", Category: CategorySystem, Title: "New Offset Project Available", Read: true, CreatedAt: base.Add(-48 * time.Hour)},
		{ID: "notif1", Category: CategoryStreak, Title: "Keep Your Streak Going!", CreatedAt: base.Add(-time.Hour)},
		{ID: "notif2", Category: CategoryChallenge, Title: "New Weekly Challenge", CreatedAt: base.Add(-24 * time.Hour)},
	}
	return NewCenter(WithStore(s), WithClock(func() time.Time { return base })), s
}

func countUnread(items []Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

func TestLoadOrdersNewestFirst(t *testing.T) {
	c, s := seeded(t)
	ctx := context.Background()

	feed, err := c.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"notif1", "notif2", "notif3"}
	for i, id := range want {
		if feed.Items[i].ID != id {
			t.Fatalf("item %d = %s, want %s", i, feed.Items[i].ID, id)
		}
	}
	if feed.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2", feed.UnreadCount)
	}

	if _, err := c.Load(ctx, "u1"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if s.loads != 1 {
		t.Fatalf("store loaded %d times, want 1", s.loads)
	}
}

func TestMarkRead(t *testing.T) {
	c, s := seeded(t)
	ctx := context.Background()

	unread, err := c.MarkRead(ctx, "u1", "notif1")
	if err != nil || unread != 1 {
		t.Fatalf("mark read = (%d, %v), want (1, nil)", unread, err)
	}

	// already read is a no-op
	unread, err = c.MarkRead(ctx, "u1", "notif1")
	if err != nil || unread != 1 {
		t.Fatalf("repeat mark read = (%d, %v), want (1, nil)", unread, err)
	}

	_, err = c.MarkRead(ctx, "u1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if !s.feeds["u1"][1].Read {
		t.Fatalf("store was not updated")
	}
}

func TestMarkAllRead(t *testing.T) {
	c, _ := seeded(t)
	ctx := context.Background()

	unread, err := c.MarkAllRead(ctx, "u1")
	if err != nil || unread != 0 {
		t.Fatalf("mark all = (%d, %v)", unread, err)
	}
	feed, _ := c.Load(ctx, "u1")
	for _, it := range feed.Items {
		if !it.Read {
			t.Fatalf("notification %s still unread", it.ID)
		}
	}
	if feed.UnreadCount != 0 {
		t.Fatalf("unread = %d", feed.UnreadCount)
	}
}

func TestStoreFailureLeavesStateUntouched(t *testing.T) {
	c, s := seeded(t)
	ctx := context.Background()
	if _, err := c.Load(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	s.failOps = true

	if _, err := c.MarkAllRead(ctx, "u1"); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := c.UnreadCount(ctx, "u1"); n != 2 {
		t.Fatalf("unread = %d after failed mark-all, want 2", n)
	}
	if _, err := c.Push(ctx, "u1", Notification{Category: CategorySystem, Title: "x"}); err == nil {
		t.Fatal("expected push error")
	}
	if feed, _ := c.Load(ctx, "u1"); len(feed.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(feed.Items))
	}
}

func TestPush(t *testing.T) {
	c := NewCenter()
	ctx := context.Background()

	if _, err := c.Push(ctx, "u2", Notification{Category: "promo"}); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	n, err := c.Push(ctx, "u2", Notification{Category: CategorySystem, Title: "Welcome"})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Fatalf("push did not fill id/created_at: %+v", n)
	}
	if again, _ := c.Push(ctx, "u2", n); again.ID != n.ID {
		t.Fatalf("re-push returned %+v", again)
	}
	feed, _ := c.Load(ctx, "u2")
	if len(feed.Items) != 1 || feed.UnreadCount != 1 {
		t.Fatalf("feed = %+v", feed)
	}
}

func TestUnreadAccountingUnderConcurrency(t *testing.T) {
	c := NewCenter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Push(ctx, "u3", Notification{Category: CategoryChallenge, Title: "t"})
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := c.MarkRead(ctx, "u3", n.ID); err != nil {
				t.Error(err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed, err := c.Load(ctx, "u3")
			if err != nil {
				t.Error(err)
				return
			}
			if feed.UnreadCount != countUnread(feed.Items) {
				t.Errorf("unread %d != derived %d", feed.UnreadCount, countUnread(feed.Items))
			}
		}()
	}
	wg.Wait()

	feed, _ := c.Load(ctx, "u3")
	if len(feed.Items) != 50 || feed.UnreadCount != 0 {
		t.Fatalf("final feed has %d items, %d unread", len(feed.Items), feed.UnreadCount)
	}
}

func TestLoadHonoursCancellation(t *testing.T) {
	c := NewCenter(WithLatency(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Load(ctx, "u4"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
