package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"counselmeet/internal/config"
	"counselmeet/internal/utils"

	"github.com/gin-gonic/gin"
)

// RateLimiter keeps one token bucket per caller
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	capacity float64
	perSec   float64
	idle     time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter allows requests per window with a burst of the same size
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		capacity: float64(requests),
		perSec:   float64(requests) / window.Seconds(),
		idle:     3 * window,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Allow checks if request is allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{tokens: rl.capacity, lastSeen: now}
		rl.visitors[key] = v
	}

	elapsed := now.Sub(v.lastSeen).Seconds()
	v.tokens += elapsed * rl.perSec
	if v.tokens > rl.capacity {
		v.tokens = rl.capacity
	}
	v.lastSeen = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// StartCleanup evicts idle visitors until Stop is called
func (rl *RateLimiter) StartCleanup() {
	go func() {
		ticker := time.NewTicker(rl.idle)
		defer ticker.Stop()
		for {
			select {
			case <-rl.stopCh:
				return
			case <-ticker.C:
				rl.cleanupVisitors()
			}
		}
	}()
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanupVisitors() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.visitors, key)
		}
	}
}

// RateLimit limits callers per the security configuration. Whitelisted IPs
// bypass it; callers are keyed by principal when authenticated, else by IP.
func RateLimit(cfg config.RateLimitConfig, limiter *RateLimiter) gin.HandlerFunc {
	whitelist := make(map[string]bool, len(cfg.IPWhitelist))
	for _, ip := range cfg.IPWhitelist {
		whitelist[ip] = true
	}
	limit := strconv.Itoa(cfg.Requests)
	retryAfter := strconv.Itoa(int(cfg.Window.Seconds()))

	return func(c *gin.Context) {
		if !cfg.Enabled || whitelist[c.ClientIP()] {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limit)
		if !limiter.Allow(getClientKey(c)) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", retryAfter)
			utils.ErrorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

// getClientKey prefers the authenticated user over the client IP
func getClientKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}
