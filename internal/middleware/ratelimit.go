package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// clientKey identifies the caller by user ID when authenticated, else by IP
func clientKey(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rejectRateLimited(w http.ResponseWriter, limit int, retryAfter time.Duration) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))

	RespondWithError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
}

// RateLimitMiddleware implements a fixed-window limiter shared through Redis
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r)
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientID)
			ctx := r.Context()

			count, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("Failed to increment rate limit counter",
					zap.Error(err),
					zap.String("key", key),
				)
				// Fail open; the limiter must not take the API down with it.
				next.ServeHTTP(w, r)
				return
			}

			if count == 1 {
				redisClient.Expire(ctx, key, config.Window)
			}

			if count > int64(config.RequestsPerWindow) {
				ttl, err := redisClient.TTL(ctx, key).Result()
				if err != nil || ttl < 0 {
					ttl = config.Window
				}

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)

				rejectRateLimited(w, config.RequestsPerWindow, ttl)
				return
			}

			remaining := config.RequestsPerWindow - int(count)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

// LocalRateLimiter keeps one token bucket per client in process memory. It
// is used when no Redis is configured.
type LocalRateLimiter struct {
	config RateLimitConfig
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*localClient
}

type localClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter creates a limiter that refills RequestsPerWindow tokens every Window
func NewLocalRateLimiter(config RateLimitConfig, logger *zap.Logger) *LocalRateLimiter {
	if config.RequestsPerWindow < 1 {
		config.RequestsPerWindow = 1
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &LocalRateLimiter{
		config:   config,
		logger:   logger,
		limiters: make(map[string]*localClient),
	}
}

func (l *LocalRateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Drop buckets idle for more than a window; they would be full anyway.
	for k, c := range l.limiters {
		if now.Sub(c.lastSeen) > l.config.Window {
			delete(l.limiters, k)
		}
	}

	c, ok := l.limiters[key]
	if !ok {
		every := l.config.Window / time.Duration(l.config.RequestsPerWindow)
		c = &localClient{limiter: rate.NewLimiter(rate.Every(every), l.config.RequestsPerWindow)}
		l.limiters[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Middleware returns the HTTP middleware enforcing the limit
func (l *LocalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := clientKey(r)
		now := time.Now()

		reservation := l.limiter(clientID, now).ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			l.logger.Warn("Rate limit exceeded",
				zap.String("client_id", clientID),
				zap.Int("limit", l.config.RequestsPerWindow),
			)
			rejectRateLimited(w, l.config.RequestsPerWindow, delay)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.RequestsPerWindow))
		next.ServeHTTP(w, r)
	})
}
