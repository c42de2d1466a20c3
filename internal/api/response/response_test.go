package response_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsroute/partsroute/internal/api/middleware"
	"github.com/partsroute/partsroute/internal/api/models"
	"github.com/partsroute/partsroute/internal/api/response"
)

// tracedRequest runs a request through the RequestID middleware so the
// context carries a request ID, the way handlers see it in production.
func tracedRequest(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var traced *http.Request
	middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traced = r
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))

	return traced, httptest.NewRecorder()
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	return problem
}

func TestJSON(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodGet, "/v1/routes")

	response.JSON(rec, req, http.StatusOK, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestJSON_NoRequestIDInContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Request-Id"))
}

func TestJSON_NilData(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodGet, "/v1/routes")

	response.JSON(rec, req, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestCreated(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodPost, "/v1/routes:optimize")

	response.Created(rec, req, "/v1/routes/plan-1", map[string]string{"planId": "plan-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/routes/plan-1", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAccepted(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodPost, "/v1/routes:optimize")

	response.Accepted(rec, req, "/v1/jobs/batch-7", map[string]string{"status": "queued"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/v1/jobs/batch-7", rec.Header().Get("Location"))
}

func TestNoContent(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodDelete, "/v1/routes/plan-1")

	response.NoContent(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestBadRequest(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodPost, "/v1/routes:optimize")

	response.BadRequest(rec, req, "request validation failed", []models.FieldError{
		{Field: "addresses", Message: "is required"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	problem := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.Equal(t, "/v1/routes:optimize", problem.Instance)
	assert.NotEmpty(t, problem.TraceID)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "addresses", problem.Errors[0].Field)
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
	}{
		{
			name:       "unauthorized",
			write:      func(w http.ResponseWriter, r *http.Request) { response.Unauthorized(w, r, "missing credentials") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not found",
			write:      func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "route plan not found") },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "conflict",
			write:      func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "plan already stored") },
			wantStatus: http.StatusConflict,
		},
		{
			name:       "internal error",
			write:      func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "optimization failed") },
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "service unavailable",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.ServiceUnavailable(w, r, "storage unreachable")
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := tracedRequest(t, http.MethodGet, "/v1/routes/plan-1")

			tt.write(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.NotEmpty(t, problem.TraceID)
		})
	}
}

func TestTooManyRequests_WithInfo(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodPost, "/v1/routes:optimize")

	response.TooManyRequestsWithInfo(rec, req, "rate limit exceeded", &response.RateLimitInfo{
		Limit:      30,
		Remaining:  0,
		ResetAt:    1704067200,
		RetryAfter: 60,
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1704067200", rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	problem := decodeProblem(t, rec)
	assert.Equal(t, http.StatusTooManyRequests, problem.Status)
}

func TestTooManyRequests_WithoutInfo(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodPost, "/v1/routes:optimize")

	response.TooManyRequests(rec, req, "rate limit exceeded")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestRequestIDPropagation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", http.NoBody)
	req.Header.Set("X-Request-Id", "dispatcher-42")

	var traced *http.Request
	middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traced = r
	})).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "dispatcher-42", middleware.GetRequestID(traced.Context()))

	rec := httptest.NewRecorder()
	response.JSON(rec, traced, http.StatusOK, map[string]string{"status": "ok"})
	assert.Equal(t, "dispatcher-42", rec.Header().Get("X-Request-Id"))
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(context.Background()))
}
