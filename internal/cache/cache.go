package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/redflag/internal/domain"
)

const defaultLocalTTL = 5 * time.Minute

// New builds the cache for cfg.Type: "memory" is a process-local LRU,
// "redis" is Redis alone or, with EnableTwoPhase, an LRU in front of it.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		remote, err := NewRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		if !cfg.EnableTwoPhase {
			return remote, nil
		}
		return NewTwoPhaseCache(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache reads through a process-local L1 to a shared L2.
// Writes go to both; L1 entries never outlive localTTL, which bounds how
// long a node can serve a payment status another node has changed.
// Counters live only in L2 so rate limits hold across nodes.
type TwoPhaseCache struct {
	local    *LRUCache
	remote   domain.Cache
	localTTL time.Duration
}

// NewTwoPhaseCache layers local over remote. A zero localTTL means five
// minutes.
func NewTwoPhaseCache(local *LRUCache, remote domain.Cache, localTTL time.Duration) *TwoPhaseCache {
	if localTTL <= 0 {
		localTTL = defaultLocalTTL
	}
	return &TwoPhaseCache{
		local:    local,
		remote:   remote,
		localTTL: localTTL,
	}
}

// Get returns the L1 value, falling back to L2 and filling L1 on a hit.
func (c *TwoPhaseCache) Get(ctx context.Context, key string) ([]byte, error) {
	if val, err := c.local.Get(ctx, key); err != nil || val != nil {
		return val, err
	}

	val, err := c.remote.Get(ctx, key)
	if err != nil || val == nil {
		return nil, err
	}
	_ = c.local.Set(ctx, key, val, c.localTTL)
	return val, nil
}

func (c *TwoPhaseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, c.capTTL(ttl)); err != nil {
		return err
	}
	return c.remote.Set(ctx, key, value, ttl)
}

func (c *TwoPhaseCache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, key)
}

// GetAssessment reads through both tiers like Get.
func (c *TwoPhaseCache) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	data, err := c.Get(ctx, assessmentKey(id))
	if err != nil || data == nil {
		return nil, err
	}
	return decodeAssessment(data)
}

func (c *TwoPhaseCache) SetAssessment(ctx context.Context, a *domain.Assessment, ttl time.Duration) error {
	data, err := encodeAssessment(a)
	if err != nil {
		return err
	}
	return c.Set(ctx, assessmentKey(a.ID), data, ttl)
}

// IncrementCounter always goes to L2.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, key, window)
}

func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats reports the L1 tier.
func (c *TwoPhaseCache) Stats() Stats {
	return c.local.Stats()
}

// capTTL bounds an L1 entry by localTTL.
func (c *TwoPhaseCache) capTTL(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < c.localTTL {
		return ttl
	}
	return c.localTTL
}
