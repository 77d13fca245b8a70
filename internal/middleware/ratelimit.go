package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scoreveda/scoreveda-backend/internal/response"
)

// RateLimiter is a per-IP token bucket. It fronts the auth endpoints, where
// credential stuffing is the concern; authenticated routes are not limited.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   int
	window  time.Duration
}

type bucket struct {
	tokens   int
	refilled time.Time
}

// NewRateLimiter allows burst requests per window per client IP. The
// eviction goroutine stops when ctx is cancelled.
func NewRateLimiter(ctx context.Context, burst int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		burst:   burst,
		window:  window,
	}
	go rl.evictLoop(ctx)
	return rl
}

// Middleware rejects over-limit requests with 429 before any handler runs.
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
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.burst, refilled: time.Now()}
		rl.buckets[ip] = b
	}

	if refill := int(time.Since(b.refilled)/rl.window) * rl.burst; refill > 0 {
		b.tokens += refill
		if b.tokens > rl.burst {
			b.tokens = rl.burst
		}
		b.refilled = time.Now()
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.buckets {
				if time.Since(b.refilled) > 3*rl.window {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}
