package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSimpleRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	limiter := newSimpleRateLimiter(2, time.Minute, clock)

	if !limiter.Allow("u1") || !limiter.Allow("u1") {
		t.Fatalf("expected first two requests to pass")
	}
	if limiter.Allow("u1") {
		t.Fatalf("expected third request within window to be rejected")
	}
	if !limiter.Allow("u2") {
		t.Fatalf("expected independent key to pass")
	}

	now = now.Add(time.Minute + time.Second)
	if !limiter.Allow("u1") {
		t.Fatalf("expected request after window reset to pass")
	}
}

func TestSimpleRateLimiterDisabled(t *testing.T) {
	if limiter := newSimpleRateLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter for non-positive limit")
	}
}

func TestRateLimitMiddlewareThrottlesByIP(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mw := RateLimitMiddleware(1, 10, func() time.Time { return now })

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "192.0.2.10:54321"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rr.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/products", nil)
	other.RemoteAddr = "192.0.2.11:54321"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected request from different address to pass, got %d", rr.Code)
	}
}

func TestRateLimitMiddlewareAuthenticatedTier(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mw := RateLimitMiddleware(1, 2, func() time.Time { return now })

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		req := authedRequest(http.MethodGet, "/cart", "")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected authenticated request %d to pass, got %d", i+1, rr.Code)
		}
	}

	req := authedRequest(http.MethodGet, "/cart", "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected authenticated request over quota to be throttled, got %d", rr.Code)
	}
}
