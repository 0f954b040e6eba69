package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProviderMetrics records upstream routing and weather calls, weather cache
// lookups and degraded fallbacks.
type ProviderMetrics struct {
	service         attribute.KeyValue
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	fallbacks       metric.Int64Counter
}

// NewProviderMetrics creates provider instruments tagged with the calling service.
func NewProviderMetrics(service string) (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)
	m := &ProviderMetrics{service: attribute.String("service.name", service)}
	var err error

	if m.requestDuration, err = meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.requestTotal, err = meter.Int64Counter("provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("provider.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}")); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter("provider.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}")); err != nil {
		return nil, err
	}
	if m.fallbacks, err = meter.Int64Counter("provider.fallback.total",
		metric.WithDescription("Number of degraded responses served in place of provider data"),
		metric.WithUnit("{response}")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *ProviderMetrics) attrs(provider, operation string, extra ...attribute.KeyValue) metric.MeasurementOption {
	kv := append([]attribute.KeyValue{
		m.service,
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}, extra...)
	return metric.WithAttributes(kv...)
}

// RecordRequest records one upstream call. Metrics use a background context
// so a cancelled request still gets recorded.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := m.attrs(provider, operation, attribute.Bool("error", err != nil))
	m.requestDuration.Record(context.Background(), duration.Seconds(), attrs)
	m.requestTotal.Add(context.Background(), 1, attrs)
}

// RecordCacheHit records a cache hit for a provider.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.Background(), 1, m.attrs(provider, operation))
}

// RecordCacheMiss records a cache miss for a provider.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.Background(), 1, m.attrs(provider, operation))
}

// RecordFallback records a fallback sample served instead of provider data.
func (m *ProviderMetrics) RecordFallback(provider, operation string) {
	m.fallbacks.Add(context.Background(), 1, m.attrs(provider, operation))
}
