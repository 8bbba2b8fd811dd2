package upstream

import (
	"context"
	"time"
)

// RateLimiter implements simple token-bucket rate limiting so the client
// never exceeds the upstream's request budget regardless of how many
// refresh jobs are in flight.
type RateLimiter struct {
	tokens   chan struct{}
	interval time.Duration
}

// NewRateLimiter creates a limiter allowing requestsPerMinute requests.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	rl := &RateLimiter{
		tokens:   make(chan struct{}, requestsPerMinute),
		interval: time.Minute / time.Duration(requestsPerMinute),
	}

	// Fill the token bucket initially
	for i := 0; i < requestsPerMinute; i++ {
		rl.tokens <- struct{}{}
	}

	return rl
}

// Wait blocks until a request can be made or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.tokens:
		// Return the token after the refill interval
		go func() {
			time.Sleep(rl.interval)
			select {
			case rl.tokens <- struct{}{}:
			default:
				// Token bucket is full
			}
		}()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
