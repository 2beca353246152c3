package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window holds one fixed-window counter and its expiry for cleanup.
type window struct {
	count     int64
	expiresAt time.Time
}

// LocalCounter is the process-local fallback counter store. It mirrors the
// Redis key shape but only sees this process's traffic, so during an outage
// limits are enforced per instance rather than system-wide. A background
// goroutine periodically evicts windows whose TTL has elapsed.
type LocalCounter struct {
	sweepInterval time.Duration

	mu      sync.Mutex
	windows map[string]*window
	done    chan struct{}
	closed  bool
}

// NewLocalCounter creates a local counter store with the given sweep
// interval. It starts a background goroutine for eviction.
func NewLocalCounter(sweepInterval time.Duration) *LocalCounter {
	lc := &LocalCounter{
		sweepInterval: sweepInterval,
		windows:       make(map[string]*window),
		done:          make(chan struct{}),
	}
	go lc.sweep()
	return lc
}

// Incr increments the counter for key, starting a fresh window when none
// exists or the previous one has expired. It never fails.
func (lc *LocalCounter) Incr(ctx context.Context, key string, windowLen time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	lc.mu.Lock()
	defer lc.mu.Unlock()

	w, exists := lc.windows[key]
	if !exists || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(windowLen)}
		lc.windows[key] = w
	}
	w.count++

	return w.count, w.expiresAt.Sub(now), nil
}

// Close stops the background sweep goroutine.
func (lc *LocalCounter) Close() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if !lc.closed {
		lc.closed = true
		close(lc.done)
	}
}

// sweep periodically evicts expired windows so the table cannot grow
// unboundedly during a long shared-store outage.
func (lc *LocalCounter) sweep() {
	ticker := time.NewTicker(lc.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lc.done:
			return
		case <-ticker.C:
			lc.evictExpired()
		}
	}
}

// evictExpired removes windows whose TTL has elapsed.
func (lc *LocalCounter) evictExpired() {
	now := time.Now()
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for key, w := range lc.windows {
		if !now.Before(w.expiresAt) {
			delete(lc.windows, key)
		}
	}
}
