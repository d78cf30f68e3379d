// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, so rate
// limit state is shared across API replicas. It uses the same fixed window
// counter algorithm as InMemoryRateLimitStore.
//
// Failure policy: the store fails OPEN. If Redis is unreachable, requests are
// allowed through and the event is counted on the Redis error metric; rate
// limiting is protective, not correctness-critical, and a Redis outage must
// not take the API down with it.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
	logger  *slog.Logger
}

// NewRedisRateLimitStore creates a new Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client: client,
		logger: slog.Default(),
	}
}

// WithMetrics attaches middleware metrics for fail-open event tracking.
// Returns the store for chaining.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// WithLogger attaches a logger. Returns the store for chaining.
func (s *RedisRateLimitStore) WithLogger(logger *slog.Logger) *RedisRateLimitStore {
	s.logger = logger
	return s
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return s.failOpen(config, err)
	}

	// First request in the window owns the expiry
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			return s.failOpen(config, err)
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, config.RequestsPerWindow - int(count), 0
	}

	// Blocked: report seconds until the window resets
	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// Counter without expiry (e.g. Expire failed earlier): reset the
		// window rather than blocking the key forever.
		if ttl < 0 {
			_ = s.client.Expire(ctx, redisKey, config.WindowDuration).Err()
		}
		return false, 0, int(config.WindowDuration.Seconds())
	}

	retryAfter := int(ttl.Round(time.Second).Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// failOpen logs and counts a Redis failure, then allows the request with a
// full quota.
func (s *RedisRateLimitStore) failOpen(config RateLimitConfig, err error) (bool, int, int) {
	s.logger.Warn("redis rate limit unavailable, failing open", "error", err)
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
	return true, config.RequestsPerWindow, 0
}
