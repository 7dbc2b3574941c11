// Package server implements a per-connection token bucket that protects the
// hub from clients flooding events.
package server

import (
	"sync"
	"time"
)

type tokenBucket struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64 // tokens per second
	lastCheck time.Time
}

func newTokenBucket(capacity int, interval time.Duration) *tokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()
	return &tokenBucket{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: time.Now(),
	}
}

// allow consumes one token, refilling first based on elapsed time. It
// returns false when the bucket is empty.
func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastCheck).Seconds()
	b.lastCheck = now

	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
