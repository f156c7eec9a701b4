package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := h(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := h(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := h(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_SeparateUsers(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})(okHandler)

	for _, user := range []string{"alice", "bob"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set("user_id", user)
		if err := h(c); err != nil {
			t.Errorf("user %s: expected first request to pass, got %v", user, err)
		}
	}
}

func TestRateLimit_Skip(t *testing.T) {
	e := echo.New()
	cfg := RateLimitConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		Skip:              func(c echo.Context) bool { return true },
	}
	h := RateLimit(cfg)(okHandler)

	for i := 0; i < 3; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := h(c); err != nil {
			t.Fatalf("skipped request %d: unexpected error %v", i+1, err)
		}
	}
}

func TestLimiter_Refills(t *testing.T) {
	l := newLimiter(10, 1)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if ok, _ := l.take("k"); !ok {
		t.Fatal("expected first take to succeed")
	}
	ok, retry := l.take("k")
	if ok {
		t.Fatal("expected second take to fail")
	}
	if retry != 1 {
		t.Errorf("expected retry 1s, got %d", retry)
	}

	now = now.Add(150 * time.Millisecond)
	if ok, _ := l.take("k"); !ok {
		t.Error("expected bucket to refill after 150ms at 10 rps")
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	l := newLimiter(10, 5)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	l.take("a")
	now = now.Add(2 * time.Minute)
	l.take("b")

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["a"]; ok {
		t.Error("expected idle bucket to be swept")
	}
	if _, ok := l.buckets["b"]; !ok {
		t.Error("expected active bucket to remain")
	}
}
