package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/saferoute/saferoute/internal/api/middleware"

// Metrics holds the HTTP server instruments. Long-lived observer streams are
// counted separately so they do not skew request latency.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
	openStreams      metric.Int64UpDownCounter
	streamDuration   metric.Float64Histogram
}

// NewMetrics registers the HTTP server instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.requestTotal, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.requestsInFlight, err = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.responseSize, err = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("Size of HTTP server responses in bytes"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.openStreams, err = meter.Int64UpDownCounter("saferoute.observer.streams_open",
		metric.WithDescription("Number of open websocket and event-stream observer connections"),
		metric.WithUnit("{connection}")); err != nil {
		return nil, err
	}
	if m.streamDuration, err = meter.Float64Histogram("saferoute.observer.stream.duration",
		metric.WithDescription("Lifetime of observer connections in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return m, nil
}

// Middleware returns an HTTP middleware that records metrics for each request,
// labelled by the matched route pattern.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			method := metric.WithAttributes(attribute.String("http.method", r.Method))

			gauge := m.requestsInFlight
			if isStream(r) {
				gauge = m.openStreams
			}
			gauge.Add(ctx, 1, method)
			defer gauge.Add(ctx, -1, method)

			rec := record(w)
			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.status_code", strconv.Itoa(rec.status)),
				attribute.Bool("error", rec.status >= http.StatusBadRequest),
			)
			elapsed := time.Since(start).Seconds()

			m.requestTotal.Add(ctx, 1, attrs)
			if isStream(r) {
				m.streamDuration.Record(ctx, elapsed, attrs)
				return
			}
			m.requestDuration.Record(ctx, elapsed, attrs)
			m.responseSize.Record(ctx, rec.written, attrs)
		})
	}
}
