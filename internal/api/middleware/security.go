package middleware

import (
	"net/http"
	"os"

	"github.com/delaycast/delaycast/internal/api/models"
)

// securityHeaders are applied to every response. The API serves JSON to
// machine clients only, so the browser policies can be maximally
// restrictive, and prediction responses must never be cached.
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Permissions-Policy":        "geolocation=(), camera=(), microphone=()",
	"Cache-Control":             "no-store",
}

// SecurityHeaders adds the standard security headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for name, value := range securityHeaders {
			h.Set(name, value)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects plain HTTP requests when REQUIRE_TLS=true is set.
// The check reads X-Forwarded-Proto, which Cloud Run and load balancers
// set; requests without the header, such as direct connections in local
// development, pass through.
func RequireTLS(next http.Handler) http.Handler {
	if os.Getenv("REQUIRE_TLS") != "true" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proto := r.Header.Get("X-Forwarded-Proto")
		if proto != "" && proto != "https" {
			problem := models.NewProblem(
				models.ProblemTypeTLSRequired,
				"TLS required",
				http.StatusForbidden,
				GetRequestID(r.Context()),
			)
			problem.Detail = "This endpoint requires HTTPS"
			problem.Instance = r.URL.Path
			problem.Write(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
