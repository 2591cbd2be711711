package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asoclub/notify-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 50
	backoffStep              = 10 * time.Millisecond
	backoffMax               = 50 * time.Millisecond
	windowSeconds            = 1
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a distributed fixed-window limiter keyed by provider
// identifier, shared by every worker in every process so vendor rate caps
// hold across the whole deployment.
type RedisRateLimiter struct {
	client       *goredis.Client
	limitPerSec  int64
	providerCaps map[string]int64
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	script       *goredis.Script
}

// NewRedisRateLimiter builds a limiter with a default per-second cap and
// optional per-provider overrides (e.g. a free gateway far below default).
func NewRedisRateLimiter(client *goredis.Client, limitPerSec int, providerCaps map[string]int) (*RedisRateLimiter, error) {
	caps := make(map[string]int64, len(providerCaps))
	for name, limit := range providerCaps {
		if limit > 0 {
			caps[strings.ToLower(strings.TrimSpace(name))] = int64(limit)
		}
	}
	return newRedisRateLimiter(client, int64(limitPerSec), caps, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limitPerSec int64,
	providerCaps map[string]int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:       client,
		limitPerSec:  limitPerSec,
		providerCaps: providerCaps,
		now:          nowFn,
		sleep:        sleepFn,
		script:       allowScript,
	}, nil
}

func (r *RedisRateLimiter) limitFor(provider string) int64 {
	if limit, ok := r.providerCaps[provider]; ok {
		return limit
	}
	return r.limitPerSec
}

func (r *RedisRateLimiter) Allow(ctx context.Context, provider string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(provider))
	if normalized == "" {
		return false, fmt.Errorf("provider is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("ratelimit:provider:%s:%d", normalized, r.now().UTC().Unix())
	result, err := r.script.Run(ctx, r.client, []string{key}, r.limitFor(normalized), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

func (r *RedisRateLimiter) Wait(ctx context.Context, provider string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, provider)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
