package ratelimit

import (
	"context"
	"fmt"

	"loadhub-core-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares windows across instances. The first hit of a window
// sets its expiry; the key vanishing is the window reset.
type RedisLimiter struct {
	rule   Rule
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string, rule Rule) *RedisLimiter {
	return &RedisLimiter{
		rule:   rule,
		client: client,
		prefix: prefix,
	}
}

func (l *RedisLimiter) Rule() Rule {
	return l.rule
}

func (l *RedisLimiter) key(identity string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, l.rule.Name, identity)
}

func (l *RedisLimiter) Allow(ctx context.Context, identity string) (*Result, error) {
	key := l.key(identity)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRedisSet, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, key, l.rule.Window).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrRedisSet, err)
		}
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRedisGet, err)
	}
	if ttl < 0 {
		// a crash between INCR and PEXPIRE would leave the key without expiry
		if err := l.client.PExpire(ctx, key, l.rule.Window).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrRedisSet, err)
		}
		ttl = l.rule.Window
	}

	return decide(l.rule, int(count), ttl), nil
}

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = (*MemoryLimiter)(nil)
)
