package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"recruitflow/internal/errors"

	"golang.org/x/time/rate"
)

const defaultLimiterIdle = 10 * time.Minute

// RateLimiter keeps one token bucket per client key (API key or IP).
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	idle     time.Duration
	done     chan struct{}
	once     sync.Once
	logger   *errors.Logger
}

// NewRateLimiter creates a limiter allowing requestsPerMin per client with
// bursts of burstCapacity. Buckets unused for idle are evicted; a zero idle
// uses ten minutes.
func NewRateLimiter(requestsPerMin int, idle time.Duration, burstCapacity int, logger *errors.Logger) *RateLimiter {
	if idle <= 0 {
		idle = defaultLimiterIdle
	}
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstCapacity,
		idle:     idle,
		done:     make(chan struct{}),
		logger:   logger,
	}
	go rl.cleanupRoutine()
	return rl
}

// Allow takes a token from the bucket of key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.lastSeen[key] = time.Now()
	rl.mu.Unlock()

	return limiter.Allow()
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"active_limiters": len(rl.limiters),
		"rate_per_minute": float64(rl.rate) * 60.0,
		"burst_capacity":  rl.burst,
		"idle_eviction":   rl.idle.String(),
	}
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-rl.done:
			return
		}
	}
}

// evictIdle removes the buckets not used since now minus the idle period
func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, lastSeen := range rl.lastSeen {
		if now.Sub(lastSeen) > rl.idle {
			delete(rl.limiters, key)
			delete(rl.lastSeen, key)
		}
	}
	rl.logger.Debug("Rate limiter cleanup completed", "remaining_limiters", len(rl.limiters))
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// rateLimitMiddleware rejects requests over the client's rate with 429.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimiter == nil || s.RateLimit == nil || !s.RateLimit.Enabled {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			kind, key := rateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			if !s.RateLimiter.Allow(key) {
				s.deps.Telemetry.RecordRateLimitHit(r.Context(), kind)
				s.Logger.Info("Rate limit exceeded",
					"limiter", kind,
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				w.Header().Set("Retry-After", "60")
				writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
				return
			}
			next(w, r)
		}
	}
}

// rateLimitKey picks the bucket of a request and names the limiter kind.
func rateLimitKey(r *http.Request, byAPIKey, byIP bool) (kind, key string) {
	if byAPIKey {
		if apiKey := requestAPIKey(r); apiKey != "" {
			return "api_key", "api:" + apiKey
		}
	}
	if byIP {
		return "ip", "ip:" + getClientIP(r)
	}
	return "", ""
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for ip := range strings.SplitSeq(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
