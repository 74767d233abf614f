package ratelimit

import (
	"context"
	"fmt"
	"time"

	"intake/internal/config"

	"github.com/redis/go-redis/v9"
)

// acquireScript runs the read-check-increment on the Redis server so it is
// atomic per key. A key that somehow lost its TTL gets it back.
var acquireScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return {current, 0}
end
current = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {current, 1}
`)

// RedisStore is a CounterStore shared by every instance pointing at the same Redis.
type RedisStore struct {
	client redis.Scripter
}

// NewRedisStore wraps a go-redis client.
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

// Acquire implements CounterStore.
func (s *RedisStore) Acquire(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	res, err := acquireScript.Run(ctx, s.client, []string{key}, limit, ms).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("failed to acquire %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected script reply for %s: %v", key, res)
	}
	return res[0], res[1] == 1, nil
}

// NewRedisClient parses cfg.URL, applies overrides and checks connectivity.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.Password == "" && cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}
