package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are tracked in thousandths so every value crossing the Lua boundary
// stays an integer. Returns {allowed, remaining_milli, retry_after_ms}.
var takeTokenScript = redis.NewScript(`
local rate_milli = tonumber(ARGV[1])
local burst_milli = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local t = redis.call("TIME")
local now_ms = t[1] * 1000 + math.floor(t[2] / 1000)

local tokens = tonumber(redis.call("HGET", KEYS[1], "tokens"))
local last_ms = tonumber(redis.call("HGET", KEYS[1], "last_ms"))
if tokens == nil or last_ms == nil then
  tokens = burst_milli
else
  local elapsed = math.max(0, now_ms - last_ms)
  tokens = math.min(burst_milli, tokens + math.floor(elapsed * rate_milli / 1000))
end

local allowed = 0
local retry_ms = 0
if tokens >= 1000 then
  allowed = 1
  tokens = tokens - 1000
else
  retry_ms = math.ceil((1000 - tokens) * 1000 / rate_milli)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "last_ms", now_ms)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, tokens, retry_ms}
`)

var ErrBucketNotConfigured = errors.New("token_bucket_not_configured")

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket refills at rate tokens per second up to burst.
type TokenBucket struct {
	client *redis.Client
	rate   float64
	burst  int
	ttl    time.Duration
}

func NewTokenBucket(client *redis.Client, rate float64, burst int) *TokenBucket {
	if client == nil || rate <= 0 || burst <= 0 {
		return nil
	}
	return &TokenBucket{
		client: client,
		rate:   rate,
		burst:  burst,
		ttl:    bucketTTL(rate, burst),
	}
}

func (b *TokenBucket) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	if b == nil || b.client == nil {
		return nil, ErrBucketNotConfigured
	}
	if key == "" {
		return nil, errors.New("token bucket key is empty")
	}

	res, err := takeTokenScript.Run(ctx, b.client, []string{key},
		int64(math.Round(b.rate*1000)),
		int64(b.burst)*1000,
		b.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) != 3 {
		return nil, errors.New("unexpected token bucket reply")
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Limit:      b.burst,
		Remaining:  int(res[1] / 1000),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle key around for two full refills.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil(float64(burst) / rate * 2)
	return time.Duration(math.Max(seconds, 1)) * time.Second
}
