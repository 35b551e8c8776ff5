// Package guard rejects a form token that is already being submitted.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/bestcars/dealer-review/pkg/logger"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "dealer-review:submit:"

// DefaultTTL bounds how long a crashed submission can hold its token
const DefaultTTL = 2 * time.Minute

// Guard marks submissions as in flight
type Guard interface {
	// Acquire returns false when token is already held
	Acquire(ctx context.Context, token string) (bool, error)
	Release(ctx context.Context, token string) error
}

// MemoryGuard keeps in-flight tokens in process memory
type MemoryGuard struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryGuard creates a single-instance guard
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		cache: gocache.New(ttl, ttl),
		ttl:   ttl,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, token string) (bool, error) {
	// Add fails when the key exists and has not expired
	if err := g.cache.Add(keyPrefix+token, struct{}{}, g.ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, token string) error {
	g.cache.Delete(keyPrefix + token)
	return nil
}

// RedisGuard shares in-flight tokens between instances
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard connects to redisURL and verifies the connection
func NewRedisGuard(ctx context.Context, redisURL string, ttl time.Duration) (*RedisGuard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	logger.Info("Submission guard connected to redis", zap.String("addr", opts.Addr))
	return &RedisGuard{client: client, ttl: ttl}, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, token string) (bool, error) {
	ok, err := g.client.SetNX(ctx, keyPrefix+token, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire submission token: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, token string) error {
	if err := g.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to release submission token: %w", err)
	}
	return nil
}

// Close closes the redis connection
func (g *RedisGuard) Close() error {
	return g.client.Close()
}
