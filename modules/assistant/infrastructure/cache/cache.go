package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/provisioning-sdk/pkg/safemap"
)

var ErrKeyNotFound = errors.New("cache: key not found")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.key(key), value, c.ttl).Err()
}

// MemoryCache never expires entries; it backs tests and single-process runs.
type MemoryCache struct {
	m *safemap.SafeMap[string, string]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: safemap.New[string, string]()}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.m.Get(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.m.Set(key, value)
	return nil
}

func (c *MemoryCache) Len() int {
	return c.m.Len()
}
