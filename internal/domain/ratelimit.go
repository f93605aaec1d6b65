package domain

import (
	"context"
	"time"
)

// RateLimitDecision reports the outcome of a single admission check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter admits or rejects a request under a fixed-window quota.
// Registration endpoints key by client address so one noisy submitter
// cannot starve the log.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
