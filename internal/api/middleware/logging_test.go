package middleware_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/saferoute/saferoute/internal/api/middleware"
)

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	handler := routed(middleware.Logger(zerolog.New(&buf)), http.MethodPost, "/v1/routes:score",
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"routes":[]}`))
		})

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:score", http.NoBody)
	req.Header.Set("User-Agent", "dashboard/1.0")
	req.Header.Set(middleware.ClientIDHeader, "ops-console")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogEntry(t, &buf)
	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/v1/routes:score", entry["route"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(13), entry["bytes"])
	assert.Equal(t, "ops-console", entry["client_id"])
	assert.Equal(t, "dashboard/1.0", entry["user_agent"])
	assert.NotEmpty(t, entry["duration"])
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusTooManyRequests, "warn"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/hazards", http.NoBody))

			entry := lastLogEntry(t, &buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.Equal(t, "unmatched", entry["route"])
		})
	}
}

func TestLogger_StreamClosed(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/hazards/stream", http.NoBody)
	req.Header.Set("Accept", "text/event-stream")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "stream closed", lastLogEntry(t, &buf)["message"])
}

func TestLogger_AttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			zerolog.Ctx(r.Context()).Info().Msg("scoring routes")
		}),
	))

	req := httptest.NewRequest(http.MethodGet, "/v1/hazards", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req_abc123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"request_id":"req_abc123"`)
	assert.Contains(t, string(lines[0]), `"message":"scoring routes"`)
	assert.Equal(t, "req_abc123", lastLogEntry(t, &buf)["request_id"])
}

func TestLogger_IncludesTraceID(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	handler := middleware.Tracing("saferoute-api")(
		middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/hazards", http.NoBody))

	entry := lastLogEntry(t, &buf)
	assert.Len(t, entry["trace_id"], 32)
	assert.Len(t, entry["span_id"], 16)
}
