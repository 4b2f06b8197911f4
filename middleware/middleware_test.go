package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/utils"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLimiterSetPerKey(t *testing.T) {
	set := newLimiterSet(4) // burst 2
	now := time.Now()
	if !set.allow("a", now) || !set.allow("a", now) {
		t.Fatal("burst should pass")
	}
	if set.allow("a", now) {
		t.Fatal("third immediate call should be limited")
	}
	if !set.allow("b", now) {
		t.Fatal("keys must not share a bucket")
	}
	// refill is one token per 15s
	if !set.allow("a", now.Add(16*time.Second)) {
		t.Fatal("token not refilled")
	}
	set.allow("c", now.Add(time.Hour))
	if _, ok := set.limiters["a"]; ok {
		t.Fatal("idle limiter not pruned")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(2), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
	if codes[0] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthRequired("secret"), func(c *gin.Context) {
		c.String(http.StatusOK, "%v|%s", c.MustGet(ContextUserIDKey), c.GetString(ContextAccountIDKey))
	})

	token, _, err := utils.GenerateToken("secret", utils.Identity{UserID: 3, Username: "sam", AccountID: "acct"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	forged, _, _ := utils.GenerateToken("other", utils.Identity{UserID: 3, AccountID: "acct"}, time.Hour)
	revoked, _, _ := utils.GenerateToken("secret", utils.Identity{UserID: 4, AccountID: "acct-4"}, time.Hour)
	utils.BlacklistToken(context.Background(), revoked, time.Now().Add(time.Hour))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer  ", http.StatusUnauthorized},
		{"forged", "Bearer " + forged, http.StatusUnauthorized},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusOK && w.Body.String() != "3|acct" {
				t.Fatalf("body = %q", w.Body.String())
			}
		})
	}
}

type fakeOpener struct{ err error }

func (f fakeOpener) Open(context.Context, string) error { return f.err }

func TestSessionRequired(t *testing.T) {
	cases := []struct {
		name    string
		account string
		err     error
		want    int
	}{
		{"no account", "", nil, http.StatusUnauthorized},
		{"open", "acct", nil, http.StatusOK},
		{"gone", "acct", ledger.ErrNotFound, http.StatusUnauthorized},
		{"busy", "acct", fmt.Errorf("%w: db down", ledger.ErrTransientUnavailable), http.StatusServiceUnavailable},
		{"broken", "acct", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) {
				if tc.account != "" {
					c.Set(ContextAccountIDKey, tc.account)
				}
			}, SessionRequired(fakeOpener{err: tc.err}), func(c *gin.Context) { c.Status(http.StatusOK) })
			if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	r := gin.New()
	r.Use(m.Handler())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/items/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "/items/:id", "200")); got != 2 {
		t.Fatalf("templated count = %v", got)
	}
	if got := testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched count = %v", got)
	}
}
