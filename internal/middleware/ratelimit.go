package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/generyand/sinag-sub010/internal/metrics"
)

// ipLimiter stores per-IP rate limiters; entries idle for staleAfter are dropped.
type ipLimiter struct {
	limiters   map[string]*limiterEntry
	mu         sync.Mutex
	rate       rate.Limit
	burst      int
	staleAfter time.Duration
	now        func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(r rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       r,
		burst:      burst,
		staleAfter: 10 * time.Minute,
		now:        time.Now,
	}
}

func (ipl *ipLimiter) allow(ip string) bool {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	now := ipl.now()
	entry, exists := ipl.limiters[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(ipl.rate, ipl.burst)}
		ipl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (ipl *ipLimiter) sweep() {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()
	now := ipl.now()
	for ip, entry := range ipl.limiters {
		if now.Sub(entry.lastSeen) > ipl.staleAfter {
			delete(ipl.limiters, ip)
		}
	}
}

func (ipl *ipLimiter) cleanupLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for range t.C {
		ipl.sweep()
	}
}

// RateLimit returns middleware that limits requests per client IP.
// For login: RateLimit(rate.Every(12*time.Second), 5) allows about 5 attempts a minute.
func RateLimit(r rate.Limit, burst int) func(http.Handler) http.Handler {
	ipl := newIPLimiter(r, burst)
	go ipl.cleanupLoop(5 * time.Minute)
	return rateLimitWith(ipl)
}

func rateLimitWith(ipl *ipLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)

			if !ipl.allow(ip) {
				metrics.RateLimited()
				zap.L().Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the original client address, preferring the first hop of
// X-Forwarded-For set by the reverse proxy.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
