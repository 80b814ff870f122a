// Package ratelimit throttles MCP tool calls with per-key token buckets.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is matched by every error returned from CheckLimit.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter hands out one token per call from a bucket per key. Buckets start
// full, hold at most burst tokens and refill at rate tokens per second.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
	nowFunc func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// take refills b up to burst and consumes one token if available.
func (b *bucket) take(now time.Time, rate float64, burst int) bool {
	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = min(b.tokens+rate*dt, float64(burst))
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// NewLimiter creates a limiter refilling rate tokens per second with the
// given burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a call for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), last: now}
		l.buckets[key] = b
	}
	return b.take(now, l.rate, l.burst)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the per-tool limits of the echild MCP server.
// Sweeps are expensive, so they are limited much harder than the read-only
// tools.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"echild_classify": NewLimiter(1.0, 20),      // 60/minute, burst 20
		"echild_sweep":    NewLimiter(6.0/60.0, 2),  // 6/minute, burst 2
		"echild_summary":  NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
	}
}

// CheckLimit returns an error wrapping ErrLimited if toolName is over its
// limit. Tools without a limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, toolName)
	}
	return nil
}
