// Package middleware provides the HTTP middleware stack for the
// DelayCast API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries request IDs between services and back to
// clients.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID ensures every request has an ID, reusing the caller's when
// one arrives in the header. The ID is stored in the context and echoed
// in the response so clients can quote it when reporting problems.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}

		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newRequestID returns a fresh ID with the req_ prefix.
func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetRequestID retrieves the request ID from the context, or "" when
// the RequestID middleware has not run.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
