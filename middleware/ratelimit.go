// middleware/ratelimit.go
package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request under key fits its window.
type Limiter interface {
	Allow(key string) bool
}

// Token bucket rate limiter implementation
type TokenBucket struct {
	tokens         float64
	maxTokens      float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
	mu             sync.Mutex
}

func NewTokenBucket(maxTokens, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.allowAt(time.Now())
}

func (tb *TokenBucket) allowAt(now time.Time) bool {
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.refillRate
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefillTime = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimiter keeps one in-process bucket per key.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mu      sync.Mutex

	maxRequests int
	window      time.Duration
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets:     make(map[string]*TokenBucket),
		maxRequests: maxRequests,
		window:      window,
	}
}

func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.maxRequests) / rl.window.Seconds()
		bucket = NewTokenBucket(float64(rl.maxRequests), refillRate)
		rl.buckets[key] = bucket
	}
	return bucket
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getBucket(key).Allow()
}

// Prune drops buckets idle for longer than maxIdle and returns how many went.
func (rl *RateLimiter) Prune(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		if now.Sub(bucket.lastRefillTime) > maxIdle {
			delete(rl.buckets, key)
			removed++
		}
		bucket.mu.Unlock()
	}
	return removed
}

// StartCleanup prunes idle buckets every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Prune(3 * interval)
			}
		}
	}()
}

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// RedisLimiter is a fixed-window counter shared by every instance behind the
// same Redis. Redis errors let the request through.
type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client redis.Scripter, prefix string, limit int, window time.Duration) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *RedisLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || l.limit <= 0 || l.window <= 0 {
		return true
	}
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, ttl, l.limit).Int64()
	if err != nil {
		return true
	}
	return allowed == 1
}

func skipRateLimit(path string) bool {
	return path == "/health" || path == "/api/health" || strings.HasPrefix(path, "/static")
}

// FiberRateLimitMiddleware applies the general per-IP limit.
func FiberRateLimitMiddleware(limiter Limiter, enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enabled || limiter == nil || skipRateLimit(c.Path()) {
			return c.Next()
		}
		if !limiter.Allow("ip:" + c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Rate limit exceeded. Please try again later.",
			})
		}
		return c.Next()
	}
}

// AcceptRateLimitMiddleware throttles token guessing on the accept endpoint.
// It keys on the authenticated user, so it must run after AuthMiddleware.
func AcceptRateLimitMiddleware(limiter Limiter, enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enabled || limiter == nil {
			return c.Next()
		}
		key := "accept:ip:" + c.IP()
		if userID, err := GetUserID(c); err == nil {
			key = "accept:user:" + userID.String()
		}
		if !limiter.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many invitation attempts. Please try again in a few minutes.",
			})
		}
		return c.Next()
	}
}
