package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body. All API errors are served with
// Content-Type application/problem+json and carry the request trace ID.
type Problem struct {
	// Type is a URI reference identifying the problem class.
	Type string `json:"type"`

	// Title is a short human-readable summary of the problem class.
	Title string `json:"title"`

	// Status is the HTTP status code of this occurrence.
	Status int `json:"status"`

	// Detail explains this specific occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is the request path that produced the problem.
	Instance string `json:"instance,omitempty"`

	// TraceID correlates the problem with logs and traces.
	TraceID string `json:"traceId"`

	// Errors holds per-field validation failures, if any.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError describes one failed validation on a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs served by this API.
const (
	ProblemTypeValidation      = "https://api.partsroute.nl/problems/validation-error"
	ProblemTypeUnauthorized    = "https://api.partsroute.nl/problems/unauthorized"
	ProblemTypeNotFound        = "https://api.partsroute.nl/problems/not-found"
	ProblemTypeConflict        = "https://api.partsroute.nl/problems/conflict"
	ProblemTypeTooManyRequests = "https://api.partsroute.nl/problems/too-many-requests"
	ProblemTypeInternal        = "https://api.partsroute.nl/problems/internal-error"
	ProblemTypeUnavailable     = "https://api.partsroute.nl/problems/service-unavailable"
)

// NewProblem builds a Problem of the given type.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail sets the occurrence detail and returns the problem.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the occurrence URI and returns the problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches field errors and returns the problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write serializes the problem to the response with problem+json content
// type and the trace ID echoed in X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest builds a 400 validation problem with optional field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return NewProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID).
		WithDetail(detail).WithErrors(errors)
}

// NewUnauthorized builds a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID).
		WithDetail(detail)
}

// NewNotFound builds a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID).
		WithDetail(detail)
}

// NewConflict builds a 409 problem.
func NewConflict(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID).
		WithDetail(detail)
}

// NewTooManyRequests builds a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID).
		WithDetail(detail)
}

// NewInternalError builds a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID).
		WithDetail(detail)
}

// NewServiceUnavailable builds a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID).
		WithDetail(detail)
}
