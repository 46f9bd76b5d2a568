package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket guarding an upstream API quota. One token
// is restored every refillEvery; Wait blocks until a token is available.
type RateLimiter struct {
	mu          sync.Mutex
	tokens      int
	capacity    int
	refillEvery time.Duration
	lastRefill  time.Time
}

func NewRateLimiter(capacity int, refillEvery time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:      capacity,
		capacity:    capacity,
		refillEvery: refillEvery,
		lastRefill:  time.Now(),
	}
}

// Wait consumes a token, blocking until one is available or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.take() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.refillEvery):
		}
	}
}

func (r *RateLimiter) take() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	refilled := int(now.Sub(r.lastRefill) / r.refillEvery)
	if refilled > 0 {
		r.tokens += refilled
		if r.tokens > r.capacity {
			r.tokens = r.capacity
		}
		r.lastRefill = r.lastRefill.Add(time.Duration(refilled) * r.refillEvery)
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}
