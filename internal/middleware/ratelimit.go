package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	idle   time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter that allows burst requests at once and
// refills one token every interval. Buckets unused for a full refill cycle
// are evicted until ctx is done.
func NewRateLimiter(ctx context.Context, burst int, interval time.Duration, logger *slog.Logger) *RateLimiter {
	rl := newRateLimiter(burst, interval, logger)
	go rl.cleanup(ctx)
	return rl
}

func newRateLimiter(burst int, interval time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Every(interval),
		burst:   burst,
		idle:    interval * time.Duration(burst),
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*rateLimitEntry),
	}
}

func (rl *RateLimiter) bucket(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[key]
	if !ok {
		entry = &rateLimitEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Allow reports whether a request from key may proceed. When it may not,
// retryAfter is how long until the next token.
func (rl *RateLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := rl.now()
	lim := rl.bucket(key, now)

	if lim.AllowN(now, 1) {
		return true, 0
	}

	res := lim.ReserveN(now, 1)
	retryAfter = res.DelayFrom(now)
	res.CancelAt(now)
	return false, retryAfter
}

// Reset clears the bucket for a key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.entries {
		if now.Sub(entry.lastSeen) > rl.idle {
			delete(rl.entries, key)
		}
	}
}

// cleanup periodically removes idle buckets to prevent memory leaks.
func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle(rl.now())
		}
	}
}

// Limit returns middleware that rejects requests over the limit with 429.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		ok, retryAfter := rl.Allow(clientIP)
		if !ok {
			rl.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]map[string]string{
				"error": {
					"code":    "rate_limit_exceeded",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Endpoint Rate Limiter
// =============================================================================

// EndpointRateLimiter holds separate limits for the unauthenticated endpoints.
type EndpointRateLimiter struct {
	login    *RateLimiter
	register *RateLimiter
	checkout *RateLimiter
}

// NewEndpointRateLimiter creates rate limiters with sensible defaults.
// - Login: burst of 5, one more every 3 minutes
// - Register: burst of 3, one more every 20 minutes
// - Checkout: burst of 5, one more every 6 minutes
func NewEndpointRateLimiter(ctx context.Context, logger *slog.Logger) *EndpointRateLimiter {
	return &EndpointRateLimiter{
		login:    NewRateLimiter(ctx, 5, 3*time.Minute, logger),
		register: NewRateLimiter(ctx, 3, 20*time.Minute, logger),
		checkout: NewRateLimiter(ctx, 5, 6*time.Minute, logger),
	}
}

// LimitLogin returns middleware for rate limiting sign-in attempts.
func (e *EndpointRateLimiter) LimitLogin(next http.Handler) http.Handler {
	return e.login.Limit(next)
}

// ResetLogin clears the sign-in limit for the client behind r after a
// successful sign-in.
func (e *EndpointRateLimiter) ResetLogin(r *http.Request) {
	e.login.Reset(getClientIP(r))
}

// LimitRegister returns middleware for rate limiting registration attempts.
func (e *EndpointRateLimiter) LimitRegister(next http.Handler) http.Handler {
	return e.register.Limit(next)
}

// LimitCheckout returns middleware for rate limiting checkout session creation.
func (e *EndpointRateLimiter) LimitCheckout(next http.Handler) http.Handler {
	return e.checkout.Limit(next)
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	// Check X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}

	return ip
}
