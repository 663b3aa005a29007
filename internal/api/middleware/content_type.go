package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/delaycast/delaycast/internal/api/models"
)

// ContentTypeJSON sets application/json as the default response content
// type. Handlers writing another type, such as problem+json, override
// it themselves.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects POST, PUT and PATCH requests whose declared
// Content-Type is not a JSON media type. Requests that omit the header
// pass through so the body decoder can report its own, more specific
// error.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !methodHasBody(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if header := r.Header.Get("Content-Type"); header != "" && !isJSONMediaType(header) {
			problem := models.NewProblem(
				models.ProblemTypeUnsupportedMedia,
				"Unsupported media type",
				http.StatusUnsupportedMediaType,
				GetRequestID(r.Context()),
			)
			problem.Detail = "Request bodies must be encoded as application/json"
			problem.Instance = r.URL.Path
			problem.Write(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func methodHasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// isJSONMediaType parses the header value so parameters like charset do
// not defeat the check. Structured syntaxes such as problem+json count
// as JSON.
func isJSONMediaType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
