package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestVendorBucket(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bucket := NewVendorBucket(client, 2, 1, time.Minute)

	vendor := "http://data.lblod.info/vendors/acme"
	allowed, _, err := bucket.Allow(ctx, vendor)
	if err != nil || !allowed {
		t.Fatalf("expected first token allowed got allowed=%v err=%v", allowed, err)
	}
	allowed, _, _ = bucket.Allow(ctx, vendor)
	if !allowed {
		t.Fatalf("expected second token allowed")
	}
	allowed, _, _ = bucket.Allow(ctx, vendor)
	if allowed {
		t.Fatalf("expected third token to be rejected")
	}

	// A different vendor draws from its own bucket.
	allowed, _, _ = bucket.Allow(ctx, "http://data.lblod.info/vendors/other")
	if !allowed {
		t.Fatalf("expected a fresh vendor to be allowed")
	}

	// Note: Cannot test refill with miniredis.FastForward() because the Lua script
	// receives time from Go's time.Now(), not Redis's internal clock.
}

func TestRetryAfter(t *testing.T) {
	bucket := NewVendorBucket(nil, 2, 0.5, time.Minute)
	if got := bucket.RetryAfter(); got != 2*time.Second {
		t.Fatalf("retry after = %v, want 2s", got)
	}
}
