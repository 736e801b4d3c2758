package service

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisIdempotencyGuard remembers idempotency keys in redis for ttl.
type RedisIdempotencyGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdempotencyGuard(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyGuard {
	return &RedisIdempotencyGuard{rdb: rdb, ttl: ttl}
}

func idempotencyKey(key string) string {
	return "idempotent-key:" + key
}

// Claim returns false when the key was already claimed.
func (g *RedisIdempotencyGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.rdb.SetNX(ctx, idempotencyKey(key), "exists", g.ttl).Result()
}

func (g *RedisIdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, idempotencyKey(key)).Err()
}
