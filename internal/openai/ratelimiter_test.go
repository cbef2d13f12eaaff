package openai

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	clock := rl.lastTime
	rl.now = func() time.Time { return clock }

	for i := range 3 {
		if !rl.tryAcquire() {
			t.Fatalf("Expected token %d to be available", i)
		}
	}
	if rl.tryAcquire() {
		t.Fatal("Expected the bucket to be empty")
	}

	// A third of the window refills exactly one token
	clock = clock.Add(20 * time.Second)
	if !rl.tryAcquire() {
		t.Error("Expected a token after refill")
	}
	if rl.tryAcquire() {
		t.Error("Expected only one token after refill")
	}

	// Refill is capped at the rate
	clock = clock.Add(time.Hour)
	for range 3 {
		rl.tryAcquire()
	}
	if rl.tryAcquire() {
		t.Error("Expected bucket capacity to be capped")
	}
}

func TestRateLimiterContextDone(t *testing.T) {
	rl := newRateLimiter(1, time.Hour)
	clock := rl.lastTime
	rl.now = func() time.Time { return clock }
	rl.tryAcquire()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := rl.Acquire(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
