package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsroute/partsroute/internal/api/middleware"
)

func metered(t *testing.T, inner http.HandlerFunc) http.Handler {
	t.Helper()
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)
	return metrics.Middleware()(inner)
}

func TestNewMetrics(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestMetrics_Middleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		inner      http.HandlerFunc
		wantStatus int
		wantBody   string
	}{
		{
			name:   "success",
			method: http.MethodGet,
			path:   "/v1/routes",
			inner: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"items":[]}`))
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"items":[]}`,
		},
		{
			name:   "server error",
			method: http.MethodPost,
			path:   "/v1/routes:optimize",
			inner: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "client error",
			method: http.MethodPost,
			path:   "/v1/routes:optimize",
			inner: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "implicit status",
			method: http.MethodGet,
			path:   "/healthz",
			inner: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			metered(t, tt.inner).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestProviderMetrics(t *testing.T) {
	pm, err := middleware.NewProviderMetrics("openrouteservice")
	require.NoError(t, err)
	require.NotNil(t, pm)

	// Cache observations must be safe to record without further setup.
	pm.RecordCacheHit("geocoding", "search")
	pm.RecordCacheMiss("directions", "matrix")
}
