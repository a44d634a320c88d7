package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/quizcoach/internal/response"
	"golang.org/x/time/rate"
)

// RateLimiter implements a per-IP token bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows each IP perInterval requests per interval, with
// bursts of the same size (e.g., 30 requests per minute).
func NewRateLimiter(perInterval int, interval time.Duration) *RateLimiter {
	if perInterval < 1 {
		perInterval = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(interval / time.Duration(perInterval)),
		burst:    perInterval,
	}
}

// Run removes visitors idle for more than three minutes until stop is closed.
func (rl *RateLimiter) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.cleanup(3 * time.Minute)
		}
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanup(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(rl.visitors, ip)
		}
	}
}
