package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a name for logging/debugging.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// New creates a limiter allowing requestsPerSecond requests with a burst of one.
// A non-positive rate disables pacing entirely.
func New(name string, requestsPerSecond float64) *Limiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, 1),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows a request to proceed.
// Returns an error if the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Unlimited reports whether pacing is disabled.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}
