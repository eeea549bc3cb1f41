// Package cache provides the Redis-backed implementation of the cache store
// port.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/foodgenie/foodgenie/internal/ports"
)

// RedisCache implements ports.CacheStore over a Redis connection.
type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

var _ ports.CacheStore = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(addr, password string, db int, log *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, ports.NewCacheError("", "ping", err)
	}

	return &RedisCache{
		client: client,
		log:    log.Named("cache"),
	}, nil
}

// Close releases the underlying Redis connection.
func (r *RedisCache) Close() error { return r.client.Close() }

// Get retrieves a cached value. A missing key is a miss, not an error.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ports.NewCacheError(key, "get", err)
	}
	return data, true, nil
}

// Set stores a value with the given expiration. Zero expiration keeps the
// key until evicted.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return ports.NewCacheError(key, "set", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is a no-op.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return ports.NewCacheError(key, "delete", err)
	}
	return nil
}
