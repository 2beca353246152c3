package ratelimit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// FailoverCounter fronts the shared counter store with a process-local
// fallback. Every call tries the primary first under a bounded timeout; on
// error or timeout the increment is applied to the fallback instead, so
// limits stay enforced (fail-closed) with per-process accuracy. There is no
// recovery timer: the next request simply retries the primary, and a single
// success flips the store back to healthy.
type FailoverCounter struct {
	primary  CounterStore
	fallback CounterStore
	timeout  time.Duration

	healthy atomic.Bool
}

// NewFailoverCounter wraps a primary store with a fallback. The timeout
// bounds each primary call; it should stay in the hundreds of milliseconds so
// a dead store does not stall the request path.
func NewFailoverCounter(primary, fallback CounterStore, timeout time.Duration) *FailoverCounter {
	fc := &FailoverCounter{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
	}
	fc.healthy.Store(true)
	return fc
}

// Incr increments via the primary store, degrading to the fallback on error.
func (fc *FailoverCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	primaryCtx, cancel := context.WithTimeout(ctx, fc.timeout)
	count, ttl, err := fc.primary.Incr(primaryCtx, key, window)
	cancel()

	if err == nil {
		if fc.healthy.CompareAndSwap(false, true) {
			slog.Info("Shared counter store recovered; resuming distributed counting")
		}
		return count, ttl, nil
	}

	if fc.healthy.CompareAndSwap(true, false) {
		slog.Warn("Shared counter store unavailable; enforcing limits from local counters",
			"error", err,
		)
	}

	return fc.fallback.Incr(ctx, key, window)
}

// Healthy reports whether the last primary-store call succeeded.
func (fc *FailoverCounter) Healthy() bool {
	return fc.healthy.Load()
}
