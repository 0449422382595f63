package app

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRefreshGate implements RefreshGate with SET NX PX on a shared Redis.
type RedisRefreshGate struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRefreshGate(client redis.UniversalClient, prefix string) *RedisRefreshGate {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	return &RedisRefreshGate{client: client, prefix: trimmedPrefix}
}

func (g *RedisRefreshGate) key(key string) string {
	if g.prefix == "" {
		return key
	}
	return g.prefix + ":" + key
}

// TryAcquire takes the gate for ttl. It returns false when another refresh
// holds it. A nil gate always grants.
func (g *RedisRefreshGate) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g == nil || g.client == nil {
		return true, nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return g.client.SetNX(ctx, g.key(key), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

// Release drops the gate so the next refresh can run immediately.
func (g *RedisRefreshGate) Release(ctx context.Context, key string) error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Del(ctx, g.key(key)).Err()
}
