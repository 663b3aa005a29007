package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaycast/delaycast/internal/api/middleware"
	"github.com/delaycast/delaycast/internal/auth"
)

const authTestSigningKey = "test-secret-key-for-testing-only"

// newAuthHandler wires the Auth middleware around a handler that
// records the authenticated service name.
func newAuthHandler(t *testing.T) (http.Handler, *string) {
	t.Helper()

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: authTestSigningKey,
		Issuer:     "https://api.delaycast.io",
		Audience:   "delaycast-api",
	})

	var service string
	handler := middleware.Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		service = middleware.GetService(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	return handler, &service
}

func authServiceForTest() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: authTestSigningKey,
		Issuer:     "https://api.delaycast.io",
		Audience:   "delaycast-api",
	})
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_MalformedAuthorizationHeader(t *testing.T) {
	handler, _ := newAuthHandler(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no scheme", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"scheme without token", "Bearer"},
		{"scheme with empty token", "Bearer "},
		{"scheme with only spaces", "Bearer    "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "bearer token")
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestAuth_ValidToken(t *testing.T) {
	handler, service := newAuthHandler(t)

	token, _, err := authServiceForTest().GenerateToken("delayctl", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "delayctl", *service)
}

func TestAuth_SchemeIsCaseInsensitive(t *testing.T) {
	handler, _ := newAuthHandler(t)

	token, _, err := authServiceForTest().GenerateToken("scheduler", time.Hour)
	require.NoError(t, err)

	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", prefix+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	handler, _ := newAuthHandler(t)

	// GenerateToken refuses to mint expired tokens, so build one directly.
	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://api.delaycast.io",
			Subject:   "delayctl",
			Audience:  jwt.ClaimStrings{"delaycast-api"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			NotBefore: jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		},
		Service: "delayctl",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(authTestSigningKey))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token has expired")
}

func TestGetService_UnauthenticatedContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetService(req.Context()))
}
