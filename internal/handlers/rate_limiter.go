package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/teleshop/api/internal/platform/auth"
	"github.com/teleshop/api/internal/platform/httpx"
)

type rateLimiter interface {
	Allow(key string) bool
}

type simpleRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &simpleRateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *simpleRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || now.After(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.store[key] = entry
	return true
}

// RateLimitMiddleware throttles requests per caller inside a fixed one-minute
// window. Authenticated callers are keyed by UID with their own quota;
// anonymous callers share a per-IP quota. A non-positive limit disables the
// corresponding tier.
func RateLimitMiddleware(anonymousPerMinute, authenticatedPerMinute int, clock func() time.Time) func(http.Handler) http.Handler {
	anonymous := newSimpleRateLimiter(anonymousPerMinute, time.Minute, clock)
	authenticated := newSimpleRateLimiter(authenticatedPerMinute, time.Minute, clock)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			limiter := anonymous
			key := clientAddr(r)
			if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
				limiter = authenticated
				key = "uid:" + identity.UID
			}

			if limiter != nil && !limiter.Allow(key) {
				httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			forwarded = forwarded[:idx]
		}
		return "ip:" + strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

func (l *simpleRateLimiter) pruneExpiredLocked(now time.Time) {
	if len(l.store) == 0 {
		return
	}
	for key, entry := range l.store {
		if now.After(entry.reset) {
			delete(l.store, key)
		}
	}
}
