// Package ratelimiter provides per-request admission control for the server.
//
// Two policies are available:
//   - SlidingLog: per-client sliding-window timestamp log (the default policy,
//     "L requests per window W per IP")
//   - TokenBucket: a single server-wide token bucket
//
// Both are safe for concurrent use by any number of connection goroutines.
package ratelimiter

// Limiter decides whether a request from the given client may proceed.
//
// Admit is called exactly once per incoming request, before any resource
// work. A false return means the caller must respond 429 and perform no
// filesystem access for that request.
type Limiter interface {
	Admit(clientIP string) bool
}
