package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSlidingWindow keeps one sorted set of hit timestamps per key. When a
// key reaches the limit and the policy has a Block, a separate block key
// rejects it until that key expires.
//
// The trim, count and add steps are not one transaction. Two concurrent
// requests at the boundary can both pass.
type RedisSlidingWindow struct {
	client redis.Cmdable
	policy Policy
	opts   options
	member func() string
}

func NewRedisSlidingWindow(client redis.Cmdable, policy Policy, opts ...Option) *RedisSlidingWindow {
	return &RedisSlidingWindow{
		client: client,
		policy: policy,
		opts:   buildOptions(opts),
		member: uuid.NewString,
	}
}

func (l *RedisSlidingWindow) hitsKey(key string) string  { return KeyPrefix + "hits:" + key }
func (l *RedisSlidingWindow) blockKey(key string) string { return KeyPrefix + "block:" + key }

func (l *RedisSlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.opts.now()
	hits := l.hitsKey(key)
	block := l.blockKey(key)

	ttl, err := l.client.PTTL(ctx, block).Result()
	if err != nil {
		return Decision{}, unavailable("pttl", err)
	}
	if ttl > 0 {
		return rejected(ttl), nil
	}

	cutoff := now.Add(-l.policy.Window).UnixMilli()
	var card *redis.IntCmd
	_, err = l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, hits, "-inf", strconv.FormatInt(cutoff, 10))
		card = p.ZCard(ctx, hits)
		return nil
	})
	if err != nil {
		return Decision{}, unavailable("trim", err)
	}
	count := int(card.Val())

	if count >= l.policy.Limit {
		if l.policy.Block > 0 {
			if err := l.client.Set(ctx, block, now.UnixMilli(), l.policy.Block).Err(); err != nil {
				return Decision{}, unavailable("set block", err)
			}
			return rejected(l.policy.Block), nil
		}
		return rejected(l.untilOldestExpires(ctx, hits, now)), nil
	}

	_, err = l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, hits, redis.Z{Score: float64(now.UnixMilli()), Member: l.member()})
		p.PExpire(ctx, hits, l.policy.Window)
		return nil
	})
	if err != nil {
		return Decision{}, unavailable("record", err)
	}

	return Decision{Allowed: true, Remaining: l.policy.Limit - count - 1}, nil
}

func (l *RedisSlidingWindow) untilOldestExpires(ctx context.Context, hits string, now time.Time) time.Duration {
	oldest, err := l.client.ZRangeWithScores(ctx, hits, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return l.policy.Window
	}
	expires := time.UnixMilli(int64(oldest[0].Score)).Add(l.policy.Window)
	return expires.Sub(now)
}
