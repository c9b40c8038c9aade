package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Su5hant/sow-backend/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// RateLimiter 基于 Redis 的令牌桶限流器。
//
// 同一个 key 的所有进程共享一个桶，脚本在 Redis 侧原子执行。
type RateLimiter struct {
	rdb    *redis.Client
	key    string
	rate   float64
	burst  float64
	logger *slog.Logger
	script *redis.Script
}

func NewRedisRateLimiter(rdb *redis.Client, logger *slog.Logger, key string, rate float64, burst float64) *RateLimiter {
	if key == "" {
		key = "sow:ratelimit:default"
	}
	return &RateLimiter{
		rdb:    rdb,
		key:    key,
		rate:   rate,
		burst:  burst,
		logger: logger,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow 非阻塞尝试取一个令牌。
//
// 返回是否放行，以及拒绝时建议的重试等待时间，供 HTTP 429 响应使用。
func (r *RateLimiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return true, 0, nil
	}
	allowed, waitMs, err := r.tryAcquire(ctx, r.key)
	if err != nil {
		return false, 0, err
	}
	if !allowed {
		metrics.RateLimitRejectedTotal.Inc()
	}
	return allowed, time.Duration(waitMs) * time.Millisecond, nil
}

// AllowKey 与 Allow 相同，但对 key 追加后缀（如客户端 IP），实现按调用方分桶。
func (r *RateLimiter) AllowKey(ctx context.Context, suffix string) (bool, time.Duration, error) {
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return true, 0, nil
	}
	key := r.key
	if suffix != "" {
		key = key + ":" + suffix
	}
	allowed, waitMs, err := r.tryAcquire(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if !allowed {
		metrics.RateLimitRejectedTotal.Inc()
	}
	return allowed, time.Duration(waitMs) * time.Millisecond, nil
}

func (r *RateLimiter) tryAcquire(ctx context.Context, key string) (bool, int64, error) {
	now := time.Now().UnixMilli()
	res, err := r.script.Run(ctx, r.rdb, []string{key}, r.rate, r.burst, now, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	waitMs := toInt64(values[1])
	return allowed, waitMs, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
