package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	SetRedis(client)
	t.Cleanup(func() {
		SetRedis(nil)
		_ = client.Close()
		s.Close()
	})
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	id := Identity{UserID: 7, Username: "sam", AccountID: "acct-7"}
	token, exp, err := GenerateToken("secret", id, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 7 || claims.AccountID != "acct-7" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := ParseToken("other", token); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
	if _, _, err := GenerateToken("", id, time.Hour); err == nil {
		t.Fatal("empty secret accepted")
	}
	noAccount, _, _ := GenerateToken("secret", Identity{UserID: 1}, time.Hour)
	if _, err := ParseToken("secret", noAccount); err == nil {
		t.Fatal("token without account accepted")
	}
}

func TestBlacklistInMemory(t *testing.T) {
	ctx := context.Background()
	BlacklistToken(ctx, "mem-token", time.Now().Add(time.Hour))
	if !IsTokenBlacklisted(ctx, "mem-token") {
		t.Fatal("token not revoked")
	}
	BlacklistToken(ctx, "expired", time.Now().Add(-time.Minute))
	if IsTokenBlacklisted(ctx, "expired") {
		t.Fatal("already expired token should not be stored")
	}
	if IsTokenBlacklisted(ctx, "unknown") {
		t.Fatal("unknown token reported revoked")
	}
}

func TestBlacklistRedis(t *testing.T) {
	s := withRedis(t)
	ctx := context.Background()

	BlacklistToken(ctx, "r-token", time.Now().Add(time.Minute))
	if !s.Exists(blacklistPrefix + "r-token") {
		t.Fatal("revocation not written to redis")
	}
	if !IsTokenBlacklisted(ctx, "r-token") {
		t.Fatal("token not revoked")
	}
	s.FastForward(2 * time.Minute)
	if IsTokenBlacklisted(ctx, "r-token") {
		t.Fatal("revocation outlived the token")
	}
}

func TestCacheJSON(t *testing.T) {
	ctx := context.Background()
	var out []string
	if CacheGetJSON(ctx, "k", &out) {
		t.Fatal("hit without redis")
	}

	s := withRedis(t)
	CacheSetJSON(ctx, "catalog:k", []string{"a", "b"}, time.Minute)
	if !CacheGetJSON(ctx, "catalog:k", &out) || len(out) != 2 || out[1] != "b" {
		t.Fatalf("cache round trip failed: %v", out)
	}
	if ttl := s.TTL("catalog:k"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	InvalidateByPrefix(ctx, "catalog:")
	if s.Exists("catalog:k") {
		t.Fatal("key survived invalidation")
	}

	_ = s.Set("bad", "{not json")
	if CacheGetJSON(ctx, "bad", &out) {
		t.Fatal("corrupt entry reported as hit")
	}
}

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  Sam  ", 0, "Sam"},
		{"<b>Sam</b><script>alert(1)</script>", 0, "Sam"},
		{"Ålesund Ålesund", 7, "Ålesund"},
		{"Tom & Jerry's", 0, "Tom & Jerry's"},
	}
	for _, tc := range cases {
		if got := SanitizeText(tc.in, tc.max); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	hash, err := HashPassword("long enough")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "long enough") || CheckPassword(hash, "wrong one") {
		t.Fatal("password check mismatch")
	}
}

type countingSweeper struct{ calls atomic.Int32 }

func (c *countingSweeper) Sweep(time.Duration) int {
	c.calls.Add(1)
	return 0
}

func TestSessionSweeperStopsWithContext(t *testing.T) {
	sw := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	StartSessionSweeper(ctx, sw, time.Minute, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for sw.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sw.calls.Load() < 2 {
		t.Fatal("sweeper did not tick")
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	after := sw.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if sw.calls.Load() != after {
		t.Fatal("sweeper kept running after cancel")
	}
}
