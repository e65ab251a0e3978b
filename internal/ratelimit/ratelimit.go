// Package ratelimit provides the accept-rate gate for the bridge listeners.
// It sheds runaway reconnect loops (a probe script stuck dialing, a debugger
// retrying in a tight loop) before they reach pairing logic.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a token bucket rate limiter: Allow spends one token, and
// tokens refill continuously at a fixed rate up to the burst capacity.
type TokenBucket struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	rate   float64 // tokens per second
	last   time.Time
}

// NewTokenBucket creates a bucket refilling at rate tokens per second with
// burst capacity. The bucket starts full.
func NewTokenBucket(rate, burst int) *TokenBucket {
	return &TokenBucket{
		tokens: float64(burst),
		burst:  float64(burst),
		rate:   float64(rate),
		last:   time.Now(),
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.tokens += now.Sub(tb.last).Seconds() * tb.rate
	if tb.tokens > tb.burst {
		tb.tokens = tb.burst
	}
	tb.last = now

	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}
