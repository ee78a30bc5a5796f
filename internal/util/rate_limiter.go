package util

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rohit-purandare/shelfbridge/internal/logger"
)

var (
	// ErrRateLimited is returned when the rate limit is exceeded
	ErrRateLimited = errors.New("rate limited")
	// DefaultRate is the default minimum time between requests
	DefaultRate = 200 * time.Millisecond
	// DefaultBurst is the default burst size
	DefaultBurst = 5
	// DefaultMaxConcurrent is the default cap on in-flight requests
	DefaultMaxConcurrent = 3
)

// RateLimiter implements a token bucket rate limiter with dynamic rate
// adjustment plus a cap on concurrently in-flight requests. Both external API
// clients consume it as a backpressure signal: a saturated limiter simply
// delays the next dispatch.
type RateLimiter struct {
	mu           sync.Mutex
	last         time.Time
	rate         time.Duration
	minRate      time.Duration
	maxRate      time.Duration
	tokens       int
	maxTokens    int
	lastRateDrop time.Time

	slots chan struct{}
	log   *logger.Logger
}

// NewRateLimiter creates a new RateLimiter. rate is the minimum time between
// requests, burst the bucket size and maxConcurrent the number of requests
// allowed in flight at once.
func NewRateLimiter(rate time.Duration, burst, maxConcurrent int, log *logger.Logger) *RateLimiter {
	if rate <= 0 {
		rate = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = logger.Get()
	}

	return &RateLimiter{
		last:         time.Now(),
		rate:         rate,
		minRate:      rate,
		maxRate:      5 * time.Second,
		tokens:       burst,
		maxTokens:    burst,
		lastRateDrop: time.Now(),
		slots:        make(chan struct{}, maxConcurrent),
		log:          log,
	}
}

// PerMinute converts a requests-per-minute budget into the minimum spacing
// between requests.
func PerMinute(requests int) time.Duration {
	if requests <= 0 {
		return DefaultRate
	}
	return time.Minute / time.Duration(requests)
}

// Acquire takes a concurrency slot, blocking until one is free or the context
// is cancelled. Callers must Release the slot when the request finishes.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a concurrency slot taken by Acquire.
func (r *RateLimiter) Release() {
	select {
	case <-r.slots:
	default:
	}
}

// Wait blocks until a token is available or the context is cancelled
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()

	now := time.Now()

	// Add tokens based on time passed
	delta := now.Sub(r.last)
	newTokens := int(float64(delta) / float64(r.rate))
	if newTokens > 0 {
		r.tokens += newTokens
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.last = now
	}

	// If we have tokens, use one and return immediately
	if r.tokens > 0 {
		r.tokens--
		r.mu.Unlock()
		return nil
	}

	// Calculate wait time with jitter (up to 20% of rate)
	waitTime := r.rate + time.Duration(rand.Float64()*0.2*float64(r.rate))
	next := r.last.Add(waitTime)

	r.mu.Unlock()

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		r.mu.Lock()
		r.last = next
		r.tokens = 0
		r.mu.Unlock()
		return nil
	}
}

// OnRateLimit is called when the remote API reports a rate limit. It
// increases the delay between requests and returns the time to wait.
func (r *RateLimiter) OnRateLimit(retryAfter time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	// Repeated rate limits within a short window get a harder backoff
	if now.Sub(r.lastRateDrop) < 5*time.Minute {
		r.rate = time.Duration(1.5 * float64(r.rate))
	} else {
		r.rate = time.Duration(1.2 * float64(r.rate))
	}

	if r.rate > r.maxRate {
		r.rate = r.maxRate
	}

	r.lastRateDrop = now

	r.log.Warn("Rate limited, increasing delay between requests", map[string]interface{}{
		"new_rate":    r.rate.String(),
		"retry_after": retryAfter.String(),
	})

	if retryAfter > 0 && retryAfter > r.rate {
		return retryAfter
	}
	return r.rate
}

// ResetRate resets the rate limiter to its minimum rate
func (r *RateLimiter) ResetRate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rate = r.minRate
	r.lastRateDrop = time.Now()
}

// GetRate returns the current rate
func (r *RateLimiter) GetRate() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}
