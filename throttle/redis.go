package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript runs the same four steps as Throttle.Allow on a Redis hash.
// Time comes from the caller so every replica agrees on the clock source.
const allowScript = `
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local period = tonumber(ARGV[3])
local timeout = tonumber(ARGV[4])

local blocked = tonumber(redis.call("HGET", KEYS[1], "blocked_until") or "0")
if now < blocked then
  return 0
end

local start = tonumber(redis.call("HGET", KEYS[1], "window_start") or "-1")
local count = tonumber(redis.call("HGET", KEYS[1], "count") or "0")
if start < 0 or now - start > period then
  count = 0
  start = now
end

count = count + 1
local allowed = 1
if count > limit then
  blocked = now + timeout
  allowed = 0
end

redis.call("HSET", KEYS[1], "count", count, "window_start", start, "blocked_until", blocked)
local ttl = period
if blocked - now > ttl then
  ttl = blocked - now
end
redis.call("PEXPIRE", KEYS[1], ttl + 1000)
return allowed
`

var allowLua = redis.NewScript(allowScript)

var _ Limiter = (*RedisThrottle)(nil)

// RedisThrottle shares counters between processes. Keys expire on their
// own, so no sweep is needed.
type RedisThrottle struct {
	redis   redis.UniversalClient
	prefix  string
	config  Config
	nowFunc func() time.Time
}

type RedisOption func(*RedisThrottle)

func WithRedisNowFunc(now func() time.Time) RedisOption {
	return func(t *RedisThrottle) {
		t.nowFunc = now
	}
}

func NewRedisThrottle(client redis.UniversalClient, prefix string, config Config, options ...RedisOption) *RedisThrottle {
	if prefix == "" {
		prefix = "auth"
	}
	t := &RedisThrottle{
		redis:   client,
		prefix:  prefix,
		config:  config,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *RedisThrottle) key(clientKey string) string {
	return t.prefix + ":throttle:" + clientKey
}

// Allow records a request from key and reports whether it may proceed.
func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := allowLua.Run(ctx, t.redis, []string{t.key(key)},
		t.nowFunc().UnixMilli(),
		t.config.Limit,
		t.config.RefreshPeriod.Milliseconds(),
		t.config.Timeout.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("throttle: %w", err)
	}
	return allowed == 1, nil
}

func (t *RedisThrottle) AllowRequest(ctx context.Context, key string) (bool, error) {
	return t.Allow(ctx, key)
}
