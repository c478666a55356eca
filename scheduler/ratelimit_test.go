package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstImmediately(t *testing.T) {
	rl := NewRateLimiter(10, 5, 0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("burst of 5 took %v, want near-instant", elapsed)
	}
}

func TestRateLimiterThrottlesBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(100, 1, 0)
	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("second permit at 100/s with burst 1 arrived in %v, want a measurable wait", elapsed)
	}
}

func TestRateLimiterJitterStaysWithinBound(t *testing.T) {
	rl := NewRateLimiter(1e6, 1, 20*time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		start := time.Now()
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
		if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
			t.Errorf("iteration %d: jittered wait %v exceeded 2x bound", i, elapsed)
		}
	}
}

func TestRateLimiterRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(1, 1, 0)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("expected Wait to return an error once ctx deadline passes before the next token")
	}
}
