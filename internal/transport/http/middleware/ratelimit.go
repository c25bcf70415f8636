package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hrpay/internal/domain/auth"
	"hrpay/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	keyFn    RateLimitKeyFunc
	mutating bool
	clients  map[string]*limiterEntry
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

// MutationsOnly leaves GET, HEAD and OPTIONS requests unthrottled.
func MutationsOnly() RateLimitOption {
	return func(rl *rateLimiter) { rl.mutating = true }
}

// RateLimit allows perMinute requests per key with a burst of the same size.
func RateLimit(perMinute int, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := &rateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		idleTTL: 10 * time.Minute,
		keyFn:   actorOrIPKey,
		clients: map[string]*limiterEntry{},
	}
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if perMinute <= 0 || (rl.mutating && isReadOnly(r.Method)) {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.allow(w, r) {
				api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func (rl *rateLimiter) allow(w http.ResponseWriter, r *http.Request) bool {
	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	now := time.Now()

	rl.mu.Lock()
	entry, ok := rl.clients[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = entry
	}
	entry.lastSeen = now
	rl.evictIdle(now)
	rl.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
		return false
	}
	return true
}

// evictIdle must be called with rl.mu held.
func (rl *rateLimiter) evictIdle(now time.Time) {
	if len(rl.clients) < 1024 {
		return
	}
	for key, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}

func actorOrIPKey(r *http.Request) string {
	if actor, ok := auth.ActorFrom(r.Context()); ok && actor.UserID != "" {
		return "user:" + actor.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if value := strings.TrimSpace(strings.Split(fwd, ",")[0]); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
