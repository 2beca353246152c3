package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chaingate/internal/models"
)

// ErrUnknownEndpoint is returned when an endpoint is evaluated without a
// registered quota table. Route registration validates endpoint names at
// bootstrap, so hitting this at request time means a wiring bug.
var ErrUnknownEndpoint = errors.New("endpoint has no registered rate limit")

// DecisionRecorder receives the outcome of every evaluation. Implementations
// must be fast and non-blocking; recording happens on the request path.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, endpoint string, tier models.Tier, allowed bool)
}

// Engine renders admission decisions. It owns no locks and keeps no
// per-request state; all shared mutation happens inside the counter store's
// atomic increment.
type Engine struct {
	registry *Registry
	counters CounterStore
	recorder DecisionRecorder
	now      func() time.Time
}

// EngineOption configures optional engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the engine's time source. Used by tests to pin window
// boundaries.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRecorder attaches a decision recorder to the engine.
func WithRecorder(recorder DecisionRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// NewEngine creates an admission engine over a sealed registry and a counter
// store.
func NewEngine(registry *Registry, counters CounterStore, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		counters: counters,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides whether one request may proceed.
//
// Allow-listed source addresses bypass counting entirely. Otherwise the
// engine increments the client's counter for the current fixed window and
// compares against the tier's limit. The increment happens for denied
// requests too: a client hammering past its quota keeps consuming the
// offending window. A request cancelled after the increment is not rolled
// back; counting it is an accepted approximation.
func (e *Engine) Evaluate(ctx context.Context, endpoint string, client Client, tier models.Tier, sourceIP string) (Decision, error) {
	limits, ok := e.registry.Lookup(endpoint)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	limit := limits.Limit(tier)
	now := e.now()
	windowID := now.UnixNano() / int64(limits.Period)
	windowEnd := time.Unix(0, (windowID+1)*int64(limits.Period))

	if limits.Bypassed(sourceIP) {
		e.record(ctx, endpoint, tier, true)
		return Decision{
			Allowed:     true,
			Limit:       limit,
			Remaining:   limit,
			ResetAfter:  windowEnd.Sub(now),
			ClientLabel: client.Label(tier),
			Bypassed:    true,
		}, nil
	}

	key := endpoint + ":" + client.Key() + ":" + strconv.FormatInt(windowID, 10)

	// Expiry is the time left in this clock-aligned bucket, not a full
	// period, so a window created mid-bucket still resets on the boundary.
	count, ttl, err := e.counters.Incr(ctx, key, windowEnd.Sub(now))
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate %s for %s: %w", endpoint, client.Key(), err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= int64(limit)
	e.record(ctx, endpoint, tier, allowed)

	return Decision{
		Allowed:     allowed,
		Limit:       limit,
		Remaining:   remaining,
		ResetAfter:  ttl,
		ClientLabel: client.Label(tier),
	}, nil
}

func (e *Engine) record(ctx context.Context, endpoint string, tier models.Tier, allowed bool) {
	if e.recorder != nil {
		e.recorder.RecordDecision(ctx, endpoint, tier, allowed)
	}
}
