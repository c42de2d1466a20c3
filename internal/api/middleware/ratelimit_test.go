package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/partsroute/partsroute/internal/api/middleware"
)

// hitFrom sends one request from the given remote address and returns the recorder.
func hitFrom(handler http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitByIP_AllowsWithinLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 5,
		WindowLength: time.Minute,
	})(okHandler())

	for i := 0; i < 5; i++ {
		rec := hitFrom(handler, "/v1/routes:optimize", "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 3,
		WindowLength: time.Minute,
	})(okHandler())

	dispatcher := "10.0.0.1:12345"
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hitFrom(handler, "/v1/routes:optimize", dispatcher).Code)
	}

	rec := hitFrom(handler, "/v1/routes:optimize", dispatcher)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimitByIP_LimitsAreKeyedByIP(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 2,
		WindowLength: time.Minute,
	})(okHandler())

	depotA := "172.16.0.1:12345"
	depotB := "172.16.0.2:12345"

	assert.Equal(t, http.StatusOK, hitFrom(handler, "/v1/routes:optimize", depotA).Code)
	assert.Equal(t, http.StatusOK, hitFrom(handler, "/v1/routes:optimize", depotA).Code)
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(handler, "/v1/routes:optimize", depotA).Code)

	// A second depot is not affected by the first depot's budget.
	assert.Equal(t, http.StatusOK, hitFrom(handler, "/v1/routes:optimize", depotB).Code)
}

func TestRateLimitExceededResponse_Format(t *testing.T) {
	handler := middleware.RequestID(
		middleware.RateLimitByIP(middleware.RateLimitConfig{
			RequestLimit: 1,
			WindowLength: time.Minute,
		})(okHandler()),
	)

	dispatcher := "203.0.113.1:12345"
	assert.Equal(t, http.StatusOK, hitFrom(handler, "/v1/routes:optimize", dispatcher).Code)

	rec := hitFrom(handler, "/v1/routes:optimize", dispatcher)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "Rate limit exceeded")
	assert.Contains(t, body, "/v1/routes:optimize")
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 30, middleware.ExpensiveRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.ExpensiveRateLimit.WindowLength)

	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.StandardRateLimit.WindowLength)
}
