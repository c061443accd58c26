package engine

import (
	"context"
	"testing"
	"time"

	"github.com/CryptoRabble/glanker/pkg/kv"
)

func TestSingleSlotWindow(t *testing.T) {
	store := kv.NewMemoryStore()
	limiter := NewRateLimiter(store, PolicySingleSlot, 1)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	now := start
	limiter.SetClock(func() time.Time { return now })

	allowed, err := limiter.Allow(ctx, 123)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatal("expected first request to be allowed")
	}
	if err := limiter.Commit(ctx, 123); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = start.Add(23*time.Hour + 59*time.Minute)
	if allowed, _ := limiter.Allow(ctx, 123); allowed {
		t.Error("expected request inside the 24h window to be rejected")
	}

	now = start.Add(24*time.Hour + time.Second)
	if allowed, _ := limiter.Allow(ctx, 123); !allowed {
		t.Error("expected request after the 24h window to be allowed")
	}
}

func TestSingleSlotIsPerActor(t *testing.T) {
	store := kv.NewMemoryStore()
	limiter := NewRateLimiter(store, PolicySingleSlot, 1)
	ctx := context.Background()

	if err := limiter.Commit(ctx, 123); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed, _ := limiter.Allow(ctx, 456); !allowed {
		t.Error("expected a different actor to be unaffected")
	}
}

func TestDailyQuota(t *testing.T) {
	store := kv.NewMemoryStore()
	limiter := NewRateLimiter(store, PolicyDailyQuota, 3)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	limiter.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, 123)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
		if err := limiter.Commit(ctx, 123); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		now = now.Add(time.Hour)
	}

	if allowed, _ := limiter.Allow(ctx, 123); allowed {
		t.Error("expected fourth request on the same day to be rejected")
	}

	// The next calendar day resets the counter even if less than 24h
	// have passed since the last generation.
	now = time.Date(2026, 3, 11, 0, 5, 0, 0, time.Local)
	if allowed, _ := limiter.Allow(ctx, 123); !allowed {
		t.Fatal("expected the next day's first request to be allowed")
	}
	if err := limiter.Commit(ctx, 123); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The counter restarted at 1, so two more fit today.
	if allowed, _ := limiter.Allow(ctx, 123); !allowed {
		t.Error("expected second request of the new day to be allowed")
	}
}
