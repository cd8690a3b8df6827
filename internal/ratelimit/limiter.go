package ratelimit

import (
	"sync"
	"time"
)

// Limiter manages one bucket per key (client address for uploads).
type Limiter struct {
	mu         sync.RWMutex
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate int
}

func NewLimiter(capacity, refillRate int) *Limiter {
	return &Limiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

func (l *Limiter) bucket(key string) *TokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b = NewTokenBucket(l.capacity, l.refillRate)
	l.buckets[key] = b
	return b
}

func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Sweep drops buckets idle for longer than maxIdle and returns how many were removed.
func (l *Limiter) Sweep(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.buckets {
		if b.idle(maxIdle) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Size is the number of tracked keys.
func (l *Limiter) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
