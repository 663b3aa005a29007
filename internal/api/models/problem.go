package models

import (
	"encoding/json"
	"net/http"
)

// ProblemType identifies the category of an API problem per RFC 7807.
type ProblemType string

const (
	ProblemTypeValidation       ProblemType = "https://api.delaycast.io/problems/validation"
	ProblemTypeUnauthorized     ProblemType = "https://api.delaycast.io/problems/unauthorized"
	ProblemTypeNotFound         ProblemType = "https://api.delaycast.io/problems/not-found"
	ProblemTypeRateLimited      ProblemType = "https://api.delaycast.io/problems/rate-limited"
	ProblemTypeInternal         ProblemType = "https://api.delaycast.io/problems/internal"
	ProblemTypeUnavailable      ProblemType = "https://api.delaycast.io/problems/unavailable"
	ProblemTypeModelNotLoaded   ProblemType = "https://api.delaycast.io/problems/model-not-loaded"
	ProblemTypeUnsupportedMedia ProblemType = "https://api.delaycast.io/problems/unsupported-media-type"
	ProblemTypeTLSRequired      ProblemType = "https://api.delaycast.io/problems/tls-required"
)

// Problem is the RFC 7807 problem details body used for every API error.
type Problem struct {
	Type     ProblemType  `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError pins a validation failure to the input field that caused it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewProblem starts a problem response. Detail, instance and field
// errors chain on through the With methods.
func NewProblem(problemType ProblemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail sets the human-readable explanation for this occurrence.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the URI of the request that raised the problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches per-field validation errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write renders the problem with the RFC 7807 media type.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest builds the 400 problem for failed request validation.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return NewProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID).
		WithDetail(detail).
		WithErrors(errors)
}

// NewUnauthorized builds the 401 problem for missing or bad credentials.
func NewUnauthorized(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID).
		WithDetail(detail)
}

// NewNotFound builds the 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID).
		WithDetail(detail)
}

// NewTooManyRequests builds the 429 problem, with a standard detail
// when none is given.
func NewTooManyRequests(traceID, detail string) *Problem {
	if detail == "" {
		detail = "Rate limit exceeded. Please retry after the indicated delay."
	}
	return NewProblem(ProblemTypeRateLimited, "Too many requests", http.StatusTooManyRequests, traceID).
		WithDetail(detail)
}

// NewInternalError builds the 500 problem. Internals stay out of the
// detail unless the caller provides one.
func NewInternalError(traceID, detail string) *Problem {
	if detail == "" {
		detail = "An unexpected error occurred. Please try again later."
	}
	return NewProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID).
		WithDetail(detail)
}

// NewServiceUnavailable builds the 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID).
		WithDetail(detail)
}
