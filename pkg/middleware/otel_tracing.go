package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/meshcache/meshcache"
	"github.com/meshcache/meshcache/internal/telemetry/attrs"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/stats"
)

// OTelTracingMiddleware wraps meshcache.Service methods with OpenTelemetry spans.
type OTelTracingMiddleware struct {
	next   meshcache.Service
	tracer trace.Tracer
	// static attributes applied to all spans
	commonAttrs []attribute.KeyValue
}

// OTelTracingOption allows configuring the tracing middleware.
type OTelTracingOption func(*OTelTracingMiddleware)

// WithCommonAttributes sets attributes applied to all spans.
func WithCommonAttributes(attributes ...attribute.KeyValue) OTelTracingOption {
	return func(m *OTelTracingMiddleware) { m.commonAttrs = append(m.commonAttrs, attributes...) }
}

// NewOTelTracingMiddleware creates a tracing middleware.
func NewOTelTracingMiddleware(next meshcache.Service, tracer trace.Tracer, opts ...OTelTracingOption) meshcache.Service {
	mw := &OTelTracingMiddleware{next: next, tracer: tracer}
	for _, o := range opts {
		o(mw)
	}

	return mw
}

// Get implements Service.Get with tracing.
func (mw OTelTracingMiddleware) Get(ctx context.Context, key string) (any, bool) {
	ctx, span := mw.startSpan(ctx, "meshcache.Get", attribute.Int(attrs.AttrKeyLength, len(key)))
	defer span.End()

	v, ok := mw.next.Get(ctx, key)
	span.SetAttributes(attribute.Bool("hit", ok))

	return v, ok
}

// Set implements Service.Set with tracing.
func (mw OTelTracingMiddleware) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	ctx, span := mw.startSpan(
		ctx, "meshcache.Set",
		attribute.Int(attrs.AttrKeyLength, len(key)),
		attribute.Int64(attrs.AttrExpirationMS, expiration.Milliseconds()))
	defer span.End()

	err := mw.next.Set(ctx, key, value, expiration)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// GetOrSet implements Service.GetOrSet with tracing.
func (mw OTelTracingMiddleware) GetOrSet(ctx context.Context, key string, value any, expiration time.Duration) (any, error) {
	ctx, span := mw.startSpan(
		ctx, "meshcache.GetOrSet",
		attribute.Int(attrs.AttrKeyLength, len(key)),
		attribute.Int64(attrs.AttrExpirationMS, expiration.Milliseconds()))
	defer span.End()

	v, err := mw.next.GetOrSet(ctx, key, value, expiration)
	if err != nil {
		span.RecordError(err)
	}

	return v, err
}

// GetWithInfo implements Service.GetWithInfo with tracing.
func (mw OTelTracingMiddleware) GetWithInfo(ctx context.Context, key string) (*cache.Item, bool) {
	ctx, span := mw.startSpan(ctx, "meshcache.GetWithInfo", attribute.Int(attrs.AttrKeyLength, len(key)))
	defer span.End()

	it, ok := mw.next.GetWithInfo(ctx, key)
	span.SetAttributes(attribute.Bool("hit", ok))

	return it, ok
}

// GetMultiple implements Service.GetMultiple with tracing.
func (mw OTelTracingMiddleware) GetMultiple(ctx context.Context, keys ...string) (map[string]any, map[string]error) {
	ctx, span := mw.startSpan(ctx, "meshcache.GetMultiple", attribute.Int(attrs.AttrKeysCount, len(keys)))
	defer span.End()

	res, failed := mw.next.GetMultiple(ctx, keys...)
	span.SetAttributes(attribute.Int(attrs.AttrResultCount, len(res)), attribute.Int("failed.count", len(failed)))

	return res, failed
}

// List implements Service.List with tracing.
func (mw OTelTracingMiddleware) List(ctx context.Context) ([]*cache.Item, error) {
	ctx, span := mw.startSpan(ctx, "meshcache.List")
	defer span.End()

	items, err := mw.next.List(ctx)
	if err != nil {
		span.RecordError(err)
	}

	if items != nil {
		span.SetAttributes(attribute.Int("items.count", len(items)))
	}

	return items, err
}

// Remove implements Service.Remove with tracing.
func (mw OTelTracingMiddleware) Remove(ctx context.Context, keys ...string) error {
	ctx, span := mw.startSpan(ctx, "meshcache.Remove", attribute.Int(attrs.AttrKeysCount, len(keys)))
	defer span.End()

	err := mw.next.Remove(ctx, keys...)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// Clear implements Service.Clear with tracing.
func (mw OTelTracingMiddleware) Clear(ctx context.Context) error {
	ctx, span := mw.startSpan(ctx, "meshcache.Clear")
	defer span.End()

	err := mw.next.Clear(ctx)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// Capacity returns cache capacity.
func (mw OTelTracingMiddleware) Capacity() int { return mw.next.Capacity() }

// Count returns items count.
func (mw OTelTracingMiddleware) Count(ctx context.Context) int { return mw.next.Count(ctx) }

// GetStats returns stats.
func (mw OTelTracingMiddleware) GetStats() stats.Stats { return mw.next.GetStats() }

// Stop stops the service with a span.
func (mw OTelTracingMiddleware) Stop(ctx context.Context) error {
	_, span := mw.startSpan(ctx, "meshcache.Stop")
	defer span.End()

	return mw.next.Stop(ctx)
}

// startSpan starts a span with common and provided attributes.
func (mw OTelTracingMiddleware) startSpan(ctx context.Context, name string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := mw.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	if len(mw.commonAttrs) > 0 {
		span.SetAttributes(mw.commonAttrs...)
	}

	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}

	return ctx, span
}
