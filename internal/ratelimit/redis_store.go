package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/scam-hunter/internal/models"
	"github.com/redis/go-redis/v9"
)

// hitScript runs the fixed-window transition atomically inside Redis.
// Returns {allowed, count, reset_ms}.
var hitScript = redis.NewScript(`
local count = tonumber(redis.call('HGET', KEYS[1], 'count'))
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset'))
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
if count == nil or reset == nil or now > reset then
	count = 0
	reset = now + window
end
if count < max then
	count = count + 1
	redis.call('HSET', KEYS[1], 'count', count, 'reset', reset)
	redis.call('PEXPIREAT', KEYS[1], reset + 1000)
	return {1, count, reset}
end
return {0, count, reset}
`)

const redisKeyPrefix = "ratelimit:"

// RedisStore is a CounterStore shared by every instance pointing at the same Redis.
type RedisStore struct {
	client redis.Scripter
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

// Hit implements CounterStore
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (models.RateLimitEntry, bool, error) {
	vals, err := hitScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), max).Int64Slice()
	if err != nil {
		return models.RateLimitEntry{}, false, fmt.Errorf("redis rate limit hit: %w", err)
	}
	if len(vals) != 3 {
		return models.RateLimitEntry{}, false, fmt.Errorf("redis rate limit hit: unexpected reply length %d", len(vals))
	}
	return models.RateLimitEntry{
		Count:     int(vals[1]),
		ResetTime: time.UnixMilli(vals[2]),
	}, vals[0] == 1, nil
}

// NewRedisClient parses redisURL and verifies the server is reachable
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
