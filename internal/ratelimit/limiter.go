// Package ratelimit implements per-client, per-endpoint admission control
// using fixed-window counters. Windows are counted in a shared Redis store so
// limits hold across server processes; when the shared store is unreachable
// the engine degrades to a process-local counter table at the same thresholds
// (fail-closed) instead of disabling enforcement. It includes HTTP middleware
// that sets standard rate limit response headers.
package ratelimit

import (
	"context"
	"time"
)

// CounterStore maintains the request count for one fixed time window.
// Implementations must be safe for concurrent use.
type CounterStore interface {
	// Incr atomically increments the counter for key, creating it with the
	// given expiry on first use, and returns the new count together with the
	// remaining time until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Decision is the outcome of one admission evaluation. It is derived output,
// never persisted.
type Decision struct {
	Allowed     bool          // Whether the request may proceed
	Limit       int           // Maximum requests in the current window
	Remaining   int           // Requests left in the current window
	ResetAfter  time.Duration // Time until the window resets
	ClientLabel string        // "<tier>:<opaque id prefix>" for response headers
	Bypassed    bool          // True for allow-listed IPs (no counting performed)
}
