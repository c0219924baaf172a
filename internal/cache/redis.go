// Package cache provides the Redis client and the Redis-backed request
// counters used for rate limiting.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect creates a Redis client and verifies the connection with a ping.
func Connect(addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", addr)
	return client, nil
}

// incrWindow bumps the counter and starts its expiry on the first hit.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RateLimitStore is a fixed-window request counter shared by every server
// instance. It satisfies echo's middleware.RateLimiterStore.
type RateLimitStore struct {
	client  redis.Scripter
	prefix  string
	limit   int64
	window  time.Duration
	timeout time.Duration
}

// NewRateLimitStore allows limit requests per identifier in each window.
func NewRateLimitStore(client redis.Scripter, prefix string, limit int, window time.Duration) *RateLimitStore {
	return &RateLimitStore{
		client:  client,
		prefix:  prefix,
		limit:   int64(limit),
		window:  window,
		timeout: time.Second,
	}
}

// Allow counts a request for identifier. Redis failures let the request
// through so an outage of the limiter does not take the API down.
func (s *RateLimitStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := "ratelimit:" + s.prefix + ":" + identifier
	n, err := incrWindow.Run(ctx, s.client, []string{key}, s.window.Milliseconds()).Int64()
	if err != nil {
		slog.Warn("rate limit counter unavailable", "key", key, "error", err)
		return true, nil
	}
	return n <= s.limit, nil
}
