package ratelimiter

import (
	"golang.org/x/time/rate"
)

// TokenBucket applies a single server-wide token bucket across all clients.
//
// It wraps golang.org/x/time/rate: tokens refill at requestsPerSecond and the
// bucket holds up to burst tokens, so short spikes above the sustained rate
// are absorbed. Unlike SlidingLog it does not distinguish clients; it is the
// right policy when the goal is protecting the server rather than fairness
// between IPs.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a server-wide token bucket limiter.
//
// requestsPerSecond = 0 means effectively unlimited.
func NewTokenBucket(requestsPerSecond, burst uint) *TokenBucket {
	if requestsPerSecond == 0 {
		// rate.Inf has awkward interactions with burst, so use a value no
		// real workload reaches.
		requestsPerSecond = 1_000_000_000
		burst = requestsPerSecond
	}

	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Admit consumes one token if available. The client IP is ignored; the
// bucket is shared by all clients.
func (t *TokenBucket) Admit(string) bool {
	return t.limiter.Allow()
}

// Tokens returns the current token count, for diagnostics.
func (t *TokenBucket) Tokens() float64 {
	return t.limiter.Tokens()
}
