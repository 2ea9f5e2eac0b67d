package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/identity-service/internal/config"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// Limiter bounds actions per key with a cooldown between requests and
// a maximum count per window. State lives in Redis so every instance shares it.
type Limiter struct {
	client      redis.Cmdable
	prefix      string
	cooldown    time.Duration
	window      time.Duration
	maxInWindow int
}

// NewLimiter returns nil when client is nil or MaxRequests is zero; a nil
// *Limiter allows everything.
func NewLimiter(client redis.Cmdable, prefix string, cfg config.RateLimitConfig) *Limiter {
	if client == nil || cfg.MaxRequests <= 0 {
		return nil
	}
	return &Limiter{
		client:      client,
		prefix:      prefix,
		cooldown:    cfg.Cooldown(),
		window:      cfg.Window(),
		maxInWindow: cfg.MaxRequests,
	}
}

// Allow records a request for key. It returns a RATE_LIMITED DomainError when
// the caller must wait, or the Redis error when the store is unreachable.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	lastKey := fmt.Sprintf("%s:last:%s", l.prefix, key)
	countKey := fmt.Sprintf("%s:count:%s", l.prefix, key)

	if l.cooldown > 0 {
		ok, err := l.client.SetNX(ctx, lastKey, 1, l.cooldown).Result()
		if err != nil {
			return err
		}
		if !ok {
			ttl, err := l.client.TTL(ctx, lastKey).Result()
			if err != nil {
				return err
			}
			return apperrors.NewRateLimited("please wait before trying again", seconds(ttl))
		}
	}

	// INCR and EXPIRE NX commit together, so every counter carries the expiry
	// set by its window's first hit.
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, countKey)
	pipe.ExpireNX(ctx, countKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	count := incr.Val()
	if int(count) > l.maxInWindow {
		ttl, err := l.client.TTL(ctx, countKey).Result()
		if err != nil {
			return err
		}
		return apperrors.NewRateLimited("too many attempts; try again later", seconds(ttl))
	}
	return nil
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
