package api

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

const pendingMarker = "pending"

// RedisDeduper stores processed idempotency keys in Redis so all instances
// can avoid reapplying the same update.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

func (r *RedisDeduper) Claim(ctx context.Context, scope, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(scope, key), pendingMarker, r.ttl).Result()
}

func (r *RedisDeduper) Complete(ctx context.Context, scope, key string, t domain.Task) error {
	data, err := sonic.Marshal(t)
	if err != nil {
		return err
	}
	return r.client.SetArgs(ctx, r.key(scope, key), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
}

func (r *RedisDeduper) Replay(ctx context.Context, scope, key string) (domain.Task, bool, error) {
	data, err := r.client.Get(ctx, r.key(scope, key)).Bytes()
	if err == redis.Nil {
		return domain.Task{}, false, nil
	}
	if err != nil {
		return domain.Task{}, false, err
	}
	if string(data) == pendingMarker {
		return domain.Task{}, false, nil
	}
	var t domain.Task
	if err := sonic.Unmarshal(data, &t); err != nil {
		return domain.Task{}, false, err
	}
	return t, true, nil
}

func (r *RedisDeduper) Release(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, r.key(scope, key)).Err()
}
