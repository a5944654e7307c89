package domain

import (
	"context"
	"time"
)

// Cache keeps recently read assessments close to the API and holds the
// fixed-window counters behind simulation rate limits. Misses are nil, nil.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// GetAssessment and SetAssessment hold copies of persisted records.
	// The repository stays the source of truth.
	GetAssessment(ctx context.Context, id string) (*Assessment, error)
	SetAssessment(ctx context.Context, a *Assessment, ttl time.Duration) error

	// IncrementCounter adds one to key and returns the count in the current
	// window. The window starts with the first increment.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig selects and tunes the cache.
type CacheConfig struct {
	Type string // memory, redis

	LocalMaxSize int
	LocalTTL     time.Duration // L1 lifetime in two-phase mode

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EnableTwoPhase puts an in-process LRU in front of Redis
	EnableTwoPhase bool
}
