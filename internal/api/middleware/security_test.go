package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/partsroute/partsroute/internal/api/middleware"
)

func serveThrough(mw func(http.Handler) http.Handler, req *http.Request, inner http.HandlerFunc) *httptest.ResponseRecorder {
	if inner == nil {
		inner = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	}
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	rec := serveThrough(middleware.SecurityHeaders, req, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=(), camera=(), microphone=()", rec.Header().Get("Permissions-Policy"))
}

func TestSecurityHeaders_PreservesHandlerHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	rec := serveThrough(middleware.SecurityHeaders, req, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/v1/routes/plan-1")
		w.WriteHeader(http.StatusCreated)
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/routes/plan-1", rec.Header().Get("Location"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRequireTLS_DisabledByDefault(t *testing.T) {
	t.Setenv("REQUIRE_TLS", "")

	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")

	rec := serveThrough(middleware.RequireTLS, req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireTLS_RejectsPlainHTTP(t *testing.T) {
	t.Setenv("REQUIRE_TLS", "true")

	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")

	rec := serveThrough(middleware.RequireTLS, req, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "TLS required")
	assert.Contains(t, rec.Body.String(), "This endpoint requires HTTPS")
}

func TestRequireTLS_AllowsHTTPS(t *testing.T) {
	t.Setenv("REQUIRE_TLS", "true")

	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "https")

	rec := serveThrough(middleware.RequireTLS, req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireTLS_AllowsDirectConnections(t *testing.T) {
	t.Setenv("REQUIRE_TLS", "true")

	// No X-Forwarded-Proto header, as with local development traffic.
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)

	rec := serveThrough(middleware.RequireTLS, req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
