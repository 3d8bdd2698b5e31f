package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ktb-community/board/internal/response"
)

// RateLimiter is a sliding-window limiter keyed by client IP. Stale keys are
// pruned lazily, at most once per window, so no background goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	lastPrune time.Time
	nowFn     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		nowFn:    time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the window.
// When it does not, it also returns how long until the oldest request expires.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFn()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastPrune) > rl.window {
		rl.prune(cutoff)
		rl.lastPrune = now
	}

	recent := rl.requests[key][:0]
	for _, at := range rl.requests[key] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false, recent[0].Sub(cutoff)
	}

	rl.requests[key] = append(recent, now)
	return true, 0
}

func (rl *RateLimiter) prune(cutoff time.Time) {
	for key, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

// RateLimit creates per-IP middleware allowing limit requests per window.
func RateLimit(limit int, window time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	limiter := NewRateLimiter(limit, window)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			ok, retryAfter := limiter.Allow(ip)
			if !ok {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				response.TooManyRequests(w)
				return
			}

			next(w, r)
		}
	}
}

// RateLimitImages limits image endpoints to 10 requests per minute per IP
func RateLimitImages() func(http.HandlerFunc) http.HandlerFunc {
	return RateLimit(10, time.Minute)
}

// RateLimitAuth limits auth endpoints to 5 requests per 15 minutes per IP
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	return RateLimit(5, 15*time.Minute)
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
