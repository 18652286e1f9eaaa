package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lovenda/veil/pkg/config"
	"github.com/lovenda/veil/pkg/observability"
)

// DistributedRateLimiter is a Redis-backed fixed-window rate limiter so
// limits hold across multiple veild instances.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config config.RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed rate limiter.
func NewDistributedRateLimiter(redisClient *redis.Client, cfg config.RateLimitConfig, prefix string) *DistributedRateLimiter {
	if prefix == "" {
		prefix = "veil:ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: cfg,
		prefix: prefix,
	}
}

// Allow checks whether one more request fits inside the current window.
// Redis errors fail open: the request is allowed and the error returned so
// callers can log it.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the unused quota for a key in the current window.
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the window for a key resets.
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Result()
}

// Reset clears the counter for a key.
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// RateLimitMiddleware applies the distributed limiter per principal, falling
// back to the client IP for anonymous requests.
type RateLimitMiddleware struct {
	limiter *DistributedRateLimiter
	logger  *observability.Logger
}

// NewRateLimitMiddleware creates HTTP rate limiting middleware.
func NewRateLimitMiddleware(limiter *DistributedRateLimiter, logger *observability.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, logger: logger}
}

// Handler wraps an HTTP handler with rate limiting.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key := "ip:" + clientIP(r)
		if pid := PrincipalID(r); pid != "" {
			key = "principal:" + pid
		}

		allowed, err := m.limiter.Allow(ctx, key)
		if err != nil {
			if m.logger != nil {
				m.logger.WithError(err).Warn("rate limiter unavailable, allowing request")
			}
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			m.rateLimitExceeded(ctx, w, key)
			return
		}

		if remaining, err := m.limiter.Remaining(ctx, key); err == nil {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.limiter.config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			if ttl, err := m.limiter.TTL(ctx, key); err == nil && ttl > 0 {
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) rateLimitExceeded(ctx context.Context, w http.ResponseWriter, key string) {
	retryAfter := m.limiter.config.Window.Seconds()
	if ttl, err := m.limiter.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl.Seconds()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.limiter.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(fmt.Sprintf(`{"error":"rate limit exceeded","retry_after":%.0f}`, retryAfter)))
}
