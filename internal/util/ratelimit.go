package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces calls to a minimum interval between starts. The first
// call passes immediately; later callers queue behind the last granted slot,
// so bursts spread out instead of draining a bucket.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewRateLimiter allows perMinute calls per minute, evenly spaced.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{interval: time.Minute / time.Duration(perMinute)}
}

// Wait blocks until the caller's slot arrives or the context is canceled.
// A canceled wait gives the slot back.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	slot := rl.next
	if slot.Before(now) {
		slot = now
	}
	rl.next = slot.Add(rl.interval)
	rl.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		rl.mu.Lock()
		rl.next = rl.next.Add(-rl.interval)
		rl.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
