package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindow counts requests with INCR. The window opens on the first
// request and the counter disappears with its TTL.
type RedisFixedWindow struct {
	client redis.Cmdable
	policy Policy
}

func NewRedisFixedWindow(client redis.Cmdable, policy Policy) *RedisFixedWindow {
	return &RedisFixedWindow{client: client, policy: policy}
}

func (l *RedisFixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	k := KeyPrefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, unavailable("incr", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, k, l.policy.Window).Err(); err != nil {
			return Decision{}, unavailable("pexpire", err)
		}
	}

	if count > int64(l.policy.Limit) {
		ttl, err := l.client.PTTL(ctx, k).Result()
		if err != nil {
			return Decision{}, unavailable("pttl", err)
		}
		// a counter left without TTL would block the key forever
		if ttl < 0 {
			ttl = l.policy.Window
			if err := l.client.PExpire(ctx, k, ttl).Err(); err != nil {
				return Decision{}, unavailable("pexpire", err)
			}
		}
		return rejected(ttl), nil
	}

	return Decision{Allowed: true, Remaining: l.policy.Limit - int(count)}, nil
}
