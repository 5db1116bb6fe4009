package ratelimit

import "context"

// RateLimiter caps send throughput per channel. Implementations must be safe
// for concurrent multi-instance use; in-process counters do not qualify.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
