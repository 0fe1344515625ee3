// Package ratelimit implements token bucket rate limiting for bulk document
// writes.
//
// The token bucket algorithm allows a burst up to the bucket capacity while
// keeping a sustained rate over time, so a migration can start quickly and
// still not saturate the primary.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a thread-safe token bucket rate limiter.
//
// The bucket has a fixed capacity and refills at a constant rate.
// Each write consumes one token.
//
// Example usage:
//
//	bucket := NewTokenBucket(5, 10) // 5 burst capacity, 10 writes/second
//	if err := bucket.Wait(ctx); err != nil {
//	    return err
//	}
type TokenBucket struct {
	capacity   int        // Maximum number of tokens the bucket can hold
	tokens     int        // Current number of tokens in the bucket
	refillRate int        // Number of tokens added per second
	lastRefill time.Time  // Last time tokens were added to the bucket
	mu         sync.Mutex // Protects all bucket state
	hitCount   int64      // Number of calls that found the bucket empty
	totalCount int64      // Total number of calls
}

// NewTokenBucket creates a new token bucket with the specified capacity and
// refill rate. The bucket starts full. A refill rate below one is raised to one.
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if refillRate < 1 {
		refillRate = 1
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow attempts to consume one token without blocking.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.totalCount++
	if _, ok := tb.take(time.Now()); ok {
		return true
	}
	tb.hitCount++
	return false
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	tb.mu.Lock()
	tb.totalCount++
	delay, ok := tb.take(time.Now())
	if !ok {
		tb.hitCount++
	}
	tb.mu.Unlock()

	for !ok {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		tb.mu.Lock()
		delay, ok = tb.take(time.Now())
		tb.mu.Unlock()
	}
	return nil
}

// take refills the bucket and consumes a token. When the bucket is empty it
// returns the time until the next token. Callers hold mu.
func (tb *TokenBucket) take(now time.Time) (time.Duration, bool) {
	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int(elapsed.Seconds() * float64(tb.refillRate))
	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return 0, true
	}

	interval := time.Second / time.Duration(tb.refillRate)
	delay := interval - now.Sub(tb.lastRefill)
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	return delay, false
}

// Stats returns how many calls found the bucket empty and the total number
// of calls.
func (tb *TokenBucket) Stats() (hits, total int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.hitCount, tb.totalCount
}
