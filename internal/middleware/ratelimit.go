// internal/middleware/ratelimit.go

package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	span    time.Duration
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string]*window),
		limit:   perMinute,
		span:    time.Minute,
	}
	go rl.evictStale()
	return rl
}

func (rl *rateLimiter) evictStale() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, w := range rl.clients {
			if time.Since(w.start) > rl.span {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[key]
	if !ok || time.Since(w.start) > rl.span {
		rl.clients[key] = &window{start: time.Now(), count: 1}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// RateLimit caps requests per client per minute, keyed by forwarded address
// when present.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	rl := newRateLimiter(perMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				key = strings.TrimSpace(strings.Split(forwarded, ",")[0])
			}

			if !rl.allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": "rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
