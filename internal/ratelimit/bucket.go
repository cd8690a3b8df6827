package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements token bucket rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refill     time.Duration // time to earn one token
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket: capacity tokens, refillRate tokens per second.
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	if refillRate <= 0 {
		refillRate = 1
	}
	return newBucket(capacity, time.Second/time.Duration(refillRate), time.Now)
}

// PerMinute builds a bucket for a requests-per-minute budget.
func PerMinute(rpm int) *TokenBucket {
	if rpm <= 0 {
		return nil
	}
	return newBucket(rpm, time.Minute/time.Duration(rpm), time.Now)
}

func newBucket(capacity int, refill time.Duration, now func() time.Time) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refill <= 0 {
		refill = time.Nanosecond
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refill:     refill,
		lastRefill: now(),
		now:        now,
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Refill tokens based on time passed
	now := tb.now()
	if earned := int(now.Sub(tb.lastRefill) / tb.refill); earned > 0 {
		tb.tokens += earned
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = tb.lastRefill.Add(time.Duration(earned) * tb.refill)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if tb == nil {
		return nil
	}
	for {
		if tb.Allow() {
			return nil
		}
		t := time.NewTimer(tb.refill)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// idle reports whether the bucket has not refilled for d.
func (tb *TokenBucket) idle(d time.Duration) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.now().Sub(tb.lastRefill) > d
}
