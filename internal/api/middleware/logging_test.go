package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/partsroute/partsroute/internal/api/middleware"
)

// loggedEntry serves one request through the handler and decodes the single
// JSON log line it produced.
func loggedEntry(t *testing.T, handler func(log zerolog.Logger) http.Handler, req *http.Request) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	handler(zerolog.New(&buf)).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogsRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	req.Header.Set("User-Agent", "dispatch-console/2.1")

	entry := loggedEntry(t, func(log zerolog.Logger) http.Handler {
		return middleware.Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"items":[]}`))
		}))
	}, req)

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/routes", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(12), entry["bytes"])
	assert.Equal(t, "dispatch-console/2.1", entry["user_agent"])
	assert.NotEmpty(t, entry["duration"])
}

func TestLogger_LogsErrorStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize", http.NoBody)

	entry := loggedEntry(t, func(log zerolog.Logger) http.Handler {
		return middleware.Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
	}, req)

	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, float64(500), entry["status"])
}

func TestLogger_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)

	entry := loggedEntry(t, func(log zerolog.Logger) http.Handler {
		return middleware.RequestID(
			middleware.Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})),
		)
	}, req)

	requestID, ok := entry["request_id"].(string)
	require.True(t, ok)
	assert.Contains(t, requestID, "req_")
}

func TestLogger_IncludesTraceID(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	req := httptest.NewRequest(http.MethodGet, "/v1/system/status", http.NoBody)

	entry := loggedEntry(t, func(log zerolog.Logger) http.Handler {
		return middleware.Tracing("partsroute-api")(
			middleware.Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})),
		)
	}, req)

	traceID, ok := entry["trace_id"].(string)
	require.True(t, ok)
	assert.Len(t, traceID, 32)

	spanID, ok := entry["span_id"].(string)
	require.True(t, ok)
	assert.Len(t, spanID, 16)
}

func TestLogger_DefaultStatusCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)

	entry := loggedEntry(t, func(log zerolog.Logger) http.Handler {
		return middleware.Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Writing without an explicit WriteHeader implies 200.
			_, _ = w.Write([]byte("ok"))
		}))
	}, req)

	assert.Equal(t, float64(200), entry["status"])
}
