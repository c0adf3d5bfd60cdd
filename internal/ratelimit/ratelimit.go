// Package ratelimit paces outbound HTTP requests.
//
// A single process-wide limiter enforces the configured inter-request
// delay across the fetch and resolve worker pools. The delay applies per
// request, not per worker, so increasing concurrency never increases the
// request rate seen by the target server.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound requests to one per configured delay.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter that releases one request per delay interval.
// A zero or negative delay disables throttling.
func New(delay time.Duration) *Limiter {
	if delay <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	// Burst of 1: requests are strictly spaced, never batched.
	return &Limiter{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may be issued or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
