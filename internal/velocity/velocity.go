// Package velocity limits how often a caller may act on one assessment
// within a time window.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/redflag/internal/domain"
)

// ErrLimitExceeded is returned once a key has used up its window.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limiter counts actions per key in fixed windows backed by the cache
// counters, so limits hold across nodes when the cache is Redis.
type Limiter struct {
	cache  domain.Cache
	prefix string
	limit  int64
	window time.Duration
}

// NewLimiter allows limit actions per window for each key under prefix.
// A limit <= 0 disables limiting.
func NewLimiter(cache domain.Cache, prefix string, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		cache:  cache,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow records one action for key. It returns the count in the current
// window and ErrLimitExceeded once the count passes the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (int64, error) {
	if l == nil || l.limit <= 0 || l.cache == nil {
		return 0, nil
	}
	if key == "" {
		return 0, fmt.Errorf("key is required")
	}

	count, err := l.cache.IncrementCounter(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", key, err)
	}
	if count > l.limit {
		return count, ErrLimitExceeded
	}
	return count, nil
}

// Limit returns the configured actions per window.
func (l *Limiter) Limit() int64 {
	return l.limit
}

// Window returns the counting window.
func (l *Limiter) Window() time.Duration {
	return l.window
}
