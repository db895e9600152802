// Package ratelimit limits how often one client may hit the inspector. Id
// resolution spends Convert API quota on every request, so the decode route
// is limited per client IP.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config configures rate limiting
type Config struct {
	// RequestsPerMinute is the sustained rate per client. Zero disables limiting.
	RequestsPerMinute int
	// Burst is how many requests a new or idle client may send at once.
	Burst int
	// IdleTTL drops clients that have not been seen for this long.
	IdleTTL time.Duration
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		Burst:             20,
		IdleTTL:           5 * time.Minute,
	}
}

// Enabled reports whether cfg limits anything.
func (c Config) Enabled() bool {
	return c.RequestsPerMinute > 0
}

// Limiter is a per-key token bucket.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// New creates a limiter. now defaults to time.Now.
func New(cfg Config, now func() time.Time) *Limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultConfig().IdleTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{cfg: cfg, now: now, buckets: make(map[string]*bucket)}
}

// Allow takes a token for key. The second result is how long to wait before
// a token is available when the request is refused.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(l.cfg.Burst - 1), seen: now}
		return true, 0
	}

	perSecond := float64(l.cfg.RequestsPerMinute) / 60
	b.tokens += now.Sub(b.seen).Seconds() * perSecond
	if b.tokens > float64(l.cfg.Burst) {
		b.tokens = float64(l.cfg.Burst)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / perSecond * float64(time.Second))
	return false, wait
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle clients at most once per IdleTTL. Caller holds l.mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.IdleTTL {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.cfg.IdleTTL)
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Middleware returns a Gin middleware that rate limits by client IP.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.Allow(c.ClientIP())
		if !ok {
			secs := max(int(math.Ceil(wait.Seconds())), 1)
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please slow down.",
				"retry_after": secs,
			})
			return
		}
		c.Next()
	}
}
