package observability

import (
	"context"
	"time"

	"chaingate/internal/models"
	"chaingate/internal/ratelimit"
	"chaingate/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStore wraps a storage.Store implementation with OpenTelemetry
// tracing and metrics instrumentation.
type InstrumentedStore struct {
	inner    storage.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStore creates a storage wrapper that records trace spans,
// operation latency histograms, and error counters for every store method call.
func NewInstrumentedStore(inner storage.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer("chaingate/storage")
	meter := otel.Meter("chaingate/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	ctx, span := s.startSpan(ctx, "GetAPIKeyByHash")
	start := time.Now()
	result, err := s.inner.GetAPIKeyByHash(ctx, keyHash)
	s.record(ctx, span, "GetAPIKeyByHash", start, err)
	return result, err
}

func (s *InstrumentedStore) GetAPIKey(ctx context.Context, id string) (*models.APIKey, error) {
	ctx, span := s.startSpan(ctx, "GetAPIKey", attribute.String("key_id", id))
	start := time.Now()
	result, err := s.inner.GetAPIKey(ctx, id)
	s.record(ctx, span, "GetAPIKey", start, err)
	return result, err
}

func (s *InstrumentedStore) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	ctx, span := s.startSpan(ctx, "SaveAPIKey", attribute.String("key_id", key.ID))
	start := time.Now()
	err := s.inner.SaveAPIKey(ctx, key)
	s.record(ctx, span, "SaveAPIKey", start, err)
	return err
}

func (s *InstrumentedStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	ctx, span := s.startSpan(ctx, "ListAPIKeys")
	start := time.Now()
	result, err := s.inner.ListAPIKeys(ctx)
	s.record(ctx, span, "ListAPIKeys", start, err)
	return result, err
}

func (s *InstrumentedStore) TouchLastUsed(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "TouchLastUsed", attribute.String("key_id", id))
	start := time.Now()
	err := s.inner.TouchLastUsed(ctx, id)
	s.record(ctx, span, "TouchLastUsed", start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

// InstrumentedCounter wraps a ratelimit.CounterStore with tracing and
// metrics. Wrapping the failover counter rather than the raw Redis store
// keeps one increment per request visible regardless of which backend
// actually served it.
type InstrumentedCounter struct {
	inner    ratelimit.CounterStore
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedCounter creates a counter-store wrapper that records a span
// and latency sample per increment.
func NewInstrumentedCounter(inner ratelimit.CounterStore) (*InstrumentedCounter, error) {
	tracer := otel.Tracer("chaingate/ratelimit")
	meter := otel.Meter("chaingate/ratelimit")

	duration, err := meter.Float64Histogram(
		"ratelimit.incr.duration",
		metric.WithDescription("Duration of window counter increments in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"ratelimit.incr.errors",
		metric.WithDescription("Number of failed window counter increments"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedCounter{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (c *InstrumentedCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, span := c.tracer.Start(ctx, "ratelimit.Incr")
	start := time.Now()

	count, ttl, err := c.inner.Incr(ctx, key, window)

	elapsed := time.Since(start).Seconds()
	c.duration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("operation", "Incr")))
	if err != nil {
		c.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "Incr")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	return count, ttl, err
}

// DecisionRecorder counts admission decisions per endpoint, tier, and
// outcome. It plugs into the engine via ratelimit.WithRecorder.
type DecisionRecorder struct {
	decisions metric.Int64Counter
}

// NewDecisionRecorder creates an admission decision counter.
func NewDecisionRecorder() (*DecisionRecorder, error) {
	meter := otel.Meter("chaingate/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of admission decisions rendered"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &DecisionRecorder{decisions: decisions}, nil
}

func (r *DecisionRecorder) RecordDecision(ctx context.Context, endpoint string, tier models.Tier, allowed bool) {
	r.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("tier", tier.String()),
		attribute.Bool("allowed", allowed),
	))
}
