package ratelimit

import "context"

// RateLimiter throttles outbound calls per provider identifier. It is the
// only mutable state shared across concurrent workers, so implementations
// must be safe for simultaneous use.
type RateLimiter interface {
	Allow(ctx context.Context, provider string) (bool, error)
	Wait(ctx context.Context, provider string) error
}
