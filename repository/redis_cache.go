package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps widget state in Redis without expiry.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCache(addr, prefix string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisCacheWithClient(rdb, prefix)
}

func NewRedisCacheWithClient(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: strings.TrimSuffix(strings.TrimSpace(prefix), ":"),
	}
}

func (r *RedisCache) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
