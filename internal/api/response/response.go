// Package response writes API responses in a consistent shape. Success
// payloads are JSON with the request ID echoed in a header; errors are
// RFC 7807 problem documents.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/delaycast/delaycast/internal/api/middleware"
	"github.com/delaycast/delaycast/internal/api/models"
)

// JSON writes data with the given status. Nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := requestID(r); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Problem writes an RFC 7807 error response with the request path as
// the problem instance.
func Problem(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 with optional per-field validation errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	Problem(w, r, models.NewBadRequest(requestID(r), detail, fields))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewUnauthorized(requestID(r), detail))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewNotFound(requestID(r), detail))
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewInternalError(requestID(r), detail))
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewServiceUnavailable(requestID(r), detail))
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
