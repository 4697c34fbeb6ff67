package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const rateLimitKeyPrefix = "ratelimit:"

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, window + 10)

return {1, limit - count - 1, now + window}
`)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64)
}

// RedisLimiter is a sliding-window limiter shared by every API replica.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, window: window}
}

// rateLimitArgs builds the script arguments. The sorted-set member is a
// fresh uuid so requests landing in the same second never collide.
func rateLimitArgs(now, window int64, limit int) []interface{} {
	return []interface{}{now, window, limit, uuid.NewString()}
}

// Check fails open: a Redis error lets the request through.
func (rl *RedisLimiter) Check(ctx context.Context, key string, limit int) (bool, int, int64) {
	now := time.Now().Unix()
	window := int64(rl.window.Seconds())

	result, err := rateLimitScript.Run(ctx, rl.client, []string{rateLimitKeyPrefix + key}, rateLimitArgs(now, window, limit)...).Int64Slice()
	if err != nil || len(result) != 3 {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing request")
		return true, limit - 1, now + window
	}
	return result[0] == 1, int(result[1]), result[2]
}

type RateLimiter struct {
	limiter Limiter
	scope   string
	limit   int
}

// NewRateLimiter limits each user to limit requests per window within scope.
func NewRateLimiter(limiter Limiter, scope string, limit int) *RateLimiter {
	return &RateLimiter{limiter: limiter, scope: scope, limit: limit}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who := r.RemoteAddr
		if id := GetUserID(r.Context()); id != uuid.Nil {
			who = id.String()
		}

		allowed, remaining, resetAt := rl.limiter.Check(r.Context(), rl.scope+":"+who, rl.limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			log.Warn().Str("scope", rl.scope).Str("caller", who).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
