package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/delaycast/delaycast/internal/api/models"
	"github.com/delaycast/delaycast/internal/auth"
)

// serviceKey is the context key for the authenticated service name.
type serviceKey struct{}

// Auth returns middleware that authenticates requests with a service
// JWT from the Authorization header. On success the service name from
// the token claims is stored in the request context, where rate
// limiting and audit logging pick it up.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				writeUnauthorized(w, r, "authorization header must carry a bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeUnauthorized(w, r, authFailureDetail(err))
				return
			}

			ctx := context.WithValue(r.Context(), serviceKey{}, claims.Service)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from a Bearer authorization
// header. The scheme comparison is case-insensitive per RFC 9110.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authFailureDetail maps token validation errors to client-safe detail
// strings. Unexpected errors get a generic message so internals do not
// leak into responses.
func authFailureDetail(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid token"
	default:
		return "authentication failed"
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetService returns the service name stored by Auth, or "" for
// unauthenticated requests.
func GetService(ctx context.Context) string {
	if name, ok := ctx.Value(serviceKey{}).(string); ok {
		return name
	}
	return ""
}
