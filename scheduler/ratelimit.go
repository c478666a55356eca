package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter is a token bucket: it refills at rate permits per
// second up to burst tokens, and adds a uniform random delay of up to
// jitterMax before granting each permit so a pile-up of simultaneous
// Wait callers doesn't all fire on the same tick.
type RateLimiter struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	tokens    float64
	last      time.Time
	jitterMax time.Duration
	now       func() time.Time
}

// NewRateLimiter builds a limiter admitting ratePerSecond permits a
// second, bursting up to burst, with up to jitterMax of random delay
// added to every grant.
func NewRateLimiter(ratePerSecond float64, burst int, jitterMax time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:      ratePerSecond,
		burst:     float64(burst),
		tokens:    float64(burst),
		last:      time.Now(),
		jitterMax: jitterMax,
		now:       time.Now,
	}
}

// Wait blocks until a permit is available and its jitter delay has
// elapsed, or ctx is cancelled first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	wait := r.reserve()
	if wait <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve consumes one token, refilling the bucket for elapsed time
// first, and returns how long the caller must wait before the permit
// it just reserved is actually usable.
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if elapsed := now.Sub(r.last); elapsed > 0 {
		r.tokens += elapsed.Seconds() * r.rate
		if r.tokens > r.burst {
			r.tokens = r.burst
		}
	}
	r.last = now

	var wait time.Duration
	if r.tokens < 1 {
		deficit := 1 - r.tokens
		wait = time.Duration(deficit / r.rate * float64(time.Second))
		r.tokens--
	} else {
		r.tokens--
	}

	if r.jitterMax > 0 {
		wait += time.Duration(rand.Int63n(int64(r.jitterMax) + 1))
	}
	return wait
}
