package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/delaycast/delaycast/internal/api/middleware"
)

func TestRequestID_GeneratesID(t *testing.T) {
	var contextID string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, strings.HasPrefix(contextID, "req_"), "context ID %q should have req_ prefix", contextID)

	// The same ID is echoed in the response header.
	assert.Equal(t, contextID, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRequestID_ReusesCallerID(t *testing.T) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream-request-id", middleware.GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "upstream-request-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-request-id", rec.Header().Get(middleware.RequestIDHeader))
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

		id := rec.Header().Get(middleware.RequestIDHeader)
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate request ID %q", id)
		seen[id] = true
	}
}

func TestGetRequestID_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}
