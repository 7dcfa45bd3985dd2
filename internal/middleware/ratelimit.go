package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/paperdesk-backend/internal/response"
)

// RateLimiter caps request throughput per client IP with a token bucket.
// Applied to the login endpoints, where unauthenticated traffic lands.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	capacity int
	window   time.Duration
}

type bucket struct {
	remaining  int
	lastRefill time.Time
}

// NewRateLimiter allows capacity requests per window per client IP.
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
	}
	go rl.evictLoop()
	return rl
}

// Middleware rejects over-limit requests with 429 and the standard envelope.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{remaining: rl.capacity, lastRefill: now}
		rl.buckets[ip] = b
	}

	if windows := int(now.Sub(b.lastRefill) / rl.window); windows > 0 {
		b.remaining += windows * rl.capacity
		if b.remaining > rl.capacity {
			b.remaining = rl.capacity
		}
		b.lastRefill = now
	}

	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// evictLoop drops buckets idle for several windows so the map does not grow
// with every IP that ever hit the login endpoint.
func (rl *RateLimiter) evictLoop() {
	for range time.Tick(time.Minute) {
		cutoff := time.Now().Add(-3 * rl.window)

		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if b.lastRefill.Before(cutoff) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
