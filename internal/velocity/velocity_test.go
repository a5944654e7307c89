package velocity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/redflag/internal/cache"
)

func TestLimiter(t *testing.T) {
	lru := cache.NewLRUCache(100)
	defer lru.Close()

	ctx := context.Background()

	t.Run("AllowsUpToLimit", func(t *testing.T) {
		l := NewLimiter(lru, "simulate", 3, time.Minute)

		for i := 1; i <= 3; i++ {
			count, err := l.Allow(ctx, "a-001")
			if err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			if count != int64(i) {
				t.Errorf("expected count %d, got %d", i, count)
			}
		}

		count, err := l.Allow(ctx, "a-001")
		if !errors.Is(err, ErrLimitExceeded) {
			t.Errorf("expected ErrLimitExceeded, got %v", err)
		}
		if count != 4 {
			t.Errorf("expected count 4, got %d", count)
		}
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		l := NewLimiter(lru, "independent", 1, time.Minute)

		if _, err := l.Allow(ctx, "a-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := l.Allow(ctx, "a-2"); err != nil {
			t.Errorf("second key should have its own window: %v", err)
		}
	})

	t.Run("PrefixesAreIndependent", func(t *testing.T) {
		a := NewLimiter(lru, "one", 1, time.Minute)
		b := NewLimiter(lru, "two", 1, time.Minute)

		_, _ = a.Allow(ctx, "shared")
		if _, err := b.Allow(ctx, "shared"); err != nil {
			t.Errorf("prefixes should not share counters: %v", err)
		}
	})

	t.Run("WindowResets", func(t *testing.T) {
		l := NewLimiter(lru, "reset", 1, 50*time.Millisecond)

		_, _ = l.Allow(ctx, "a-001")
		if _, err := l.Allow(ctx, "a-001"); !errors.Is(err, ErrLimitExceeded) {
			t.Fatalf("expected limit inside window, got %v", err)
		}

		time.Sleep(80 * time.Millisecond)

		if _, err := l.Allow(ctx, "a-001"); err != nil {
			t.Errorf("expected new window, got %v", err)
		}
	})

	t.Run("DisabledLimit", func(t *testing.T) {
		l := NewLimiter(lru, "off", 0, time.Minute)
		for i := 0; i < 10; i++ {
			if _, err := l.Allow(ctx, "a-001"); err != nil {
				t.Fatalf("disabled limiter returned %v", err)
			}
		}

		var nilLimiter *Limiter
		if _, err := nilLimiter.Allow(ctx, "a-001"); err != nil {
			t.Errorf("nil limiter returned %v", err)
		}
	})

	t.Run("RequiresKey", func(t *testing.T) {
		l := NewLimiter(lru, "key", 1, time.Minute)
		if _, err := l.Allow(ctx, ""); err == nil {
			t.Error("expected error for empty key")
		}
	})

	t.Run("DefaultWindow", func(t *testing.T) {
		l := NewLimiter(lru, "default", 1, 0)
		if l.Window() != time.Minute {
			t.Errorf("expected default window of a minute, got %s", l.Window())
		}
		if l.Limit() != 1 {
			t.Errorf("expected limit 1, got %d", l.Limit())
		}
	})
}
