package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// Limiter is a fixed-window, per-IP request counter.
type Limiter struct {
	limit   int
	per     time.Duration
	message string
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func NewLimiter(limit int, per time.Duration, message string) *Limiter {
	if message == "" {
		message = "Too many requests, please try again later."
	}
	return &Limiter{
		limit:   limit,
		per:     per,
		message: message,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow counts a request from ip and reports whether it is within the limit.
// When it is not, the returned duration is the time until the window resets.
func (l *Limiter) Allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	b, ok := l.buckets[ip]
	if !ok || !now.Before(b.until) {
		b = &bucket{until: now.Add(l.per)}
		l.buckets[ip] = b
	}
	if b.count >= l.limit {
		return false, b.until.Sub(now)
	}
	b.count++
	return true, 0
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.per {
		return
	}
	for ip, b := range l.buckets {
		if !now.Before(b.until) {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

// Handler rejects requests over the limit with a JSON 429.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Allow(clientIPForRateLimit(r))
		if !ok {
			retry := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":    false,
				"error":      l.message,
				"retryAfter": retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RateLimit(limit int, per time.Duration, message string) func(http.Handler) http.Handler {
	return NewLimiter(limit, per, message).Handler
}

// clientIPForRateLimit keys on the socket peer. Forwarded headers only count
// once TrustedRealIP has folded them into RemoteAddr.
func clientIPForRateLimit(r *http.Request) string {
	return remoteHost(r.RemoteAddr)
}
