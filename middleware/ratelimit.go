package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig is a named fixed-window ceiling. Windows reset hard at
// the deadline, so a burst straddling a boundary can admit up to twice the
// ceiling; that is an accepted simplification.
type RateLimitConfig struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

var (
	// AuthLimit guards credential endpoints and the public coupon check,
	// both code-enumeration targets.
	AuthLimit   = RateLimitConfig{Name: "auth", MaxRequests: 5, Window: time.Minute}
	AdminLimit  = RateLimitConfig{Name: "admin", MaxRequests: 60, Window: time.Minute}
	APILimit    = RateLimitConfig{Name: "api", MaxRequests: 100, Window: time.Minute}
	PublicLimit = RateLimitConfig{Name: "public", MaxRequests: 30, Window: time.Minute}
)

// pruneAbove bounds the window map; expired entries are dropped once the
// map grows past it.
const pruneAbove = 10000

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter holds per-identity fixed-window counters. State is process
// local; a multi-instance deployment limits per instance.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]*window)}
}

// Check counts one request for identity under cfg and reports whether it
// is admitted, how many requests remain in the window, and when the window
// resets.
func (rl *RateLimiter) Check(cfg RateLimitConfig, identity string, now time.Time) (allowed bool, remaining int, resetAt time.Time) {
	key := cfg.Name + ":" + identity

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(cfg.Window)}
		rl.windows[key] = w
		if len(rl.windows) > pruneAbove {
			rl.prune(now)
		}
	}

	w.count++
	remaining = cfg.MaxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= cfg.MaxRequests, remaining, w.resetAt
}

func (rl *RateLimiter) prune(now time.Time) {
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimit rejects requests over the ceiling with 429 and Retry-After.
// Identity is the client IP as gin derives it from forwarded headers.
func RateLimit(rl *RateLimiter, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		allowed, remaining, resetAt := rl.Check(cfg, c.ClientIP(), now)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			RecordRateLimited(cfg.Name)
			retryAfter := int(resetAt.Sub(now).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later",
			})
			return
		}

		c.Next()
	}
}
