package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"seatwatch/pkg/logger"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client, &Config{
		Enabled:          true,
		WindowDuration:   time.Minute,
		DefaultRequests:  5,
		AuthRequests:     2,
		BookingRequests:  3,
		BrowsingRequests: 10,
		HealthRequests:   100,
	}), mr
}

func TestRateLimiterWindow(t *testing.T) {
	rl, _ := newTestLimiter(t)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	// All within the same second.
	for i := 1; i <= 3; i++ {
		res, err := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeBooking)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed || res.Remaining != 3-i {
			t.Fatalf("request %d: expected allowed with %d remaining, got %+v", i, 3-i, res)
		}
	}

	res, err := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeBooking)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Allowed || res.Remaining != 0 {
		t.Fatalf("fourth request should be rejected, got %+v", res)
	}

	// Other clients and other route classes have their own budget.
	if res, _ := rl.IsAllowed(ctx, "10.0.0.2", RateLimitTypeBooking); !res.Allowed {
		t.Fatalf("another client was limited")
	}
	if res, _ := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeBrowsing); !res.Allowed {
		t.Fatalf("another route class was limited")
	}

	// Once the window has slid past the first requests they no longer count.
	now = now.Add(time.Minute + time.Second)
	if res, _ := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeBooking); !res.Allowed {
		t.Fatalf("request after the window should be allowed")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl, mr := newTestLimiter(t)
	rl.config.Enabled = false

	for i := 0; i < 5; i++ {
		res, err := rl.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeAuth)
		if err != nil || !res.Allowed || res.Remaining != 2 {
			t.Fatalf("disabled limiter rejected request: %+v %v", res, err)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("disabled limiter wrote keys %v", mr.Keys())
	}
}

func TestRateLimitType(t *testing.T) {
	tests := map[string]RateLimitType{
		"/health":                     RateLimitTypeHealth,
		"/api/v1/session/login":       RateLimitTypeAuth,
		"/api/v1/bookings":            RateLimitTypeBooking,
		"/api/v1/bookings/:entry_id":  RateLimitTypeBooking,
		"/api/v1/reservations":        RateLimitTypeBooking,
		"/api/v1/availability/search": RateLimitTypeBrowsing,
		"/api/v1/areas":               RateLimitTypeBrowsing,
		"/api/v1/history":             RateLimitTypeDefault,
	}
	for path, want := range tests {
		if got := getRateLimitType(path); got != want {
			t.Errorf("%s: expected %s, got %s", path, want, got)
		}
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, mr := newTestLimiter(t)

	engine := gin.New()
	engine.Use(Middleware(rl, logger.Discard()))
	engine.POST("/api/v1/session/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send(); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "2" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected headers %v", w.Header())
	}
	if !mr.Exists("seatwatch:ratelimit:203.0.113.9:auth") {
		t.Fatalf("expected a bucket for the forwarded address, have %v", mr.Keys())
	}

	// An unreachable store does not take the API down.
	mr.Close()
	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("expected the request through with the store down, got %d", w.Code)
	}
}
