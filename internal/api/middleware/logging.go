package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger returns a middleware that writes one structured log line per
// completed request, correlated with the request ID and the active
// trace. Liveness and readiness probes fire every few seconds and are
// demoted to debug level so they do not drown out real traffic.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrapWriter(w)

			next.ServeHTTP(sw, r)

			event := log.Info()
			if isProbePath(r.URL.Path) {
				event = log.Debug()
			}

			traceID, spanID := traceIDs(r.Context())
			event.
				Str("request_id", GetRequestID(r.Context())).
				Str("trace_id", traceID).
				Str("span_id", spanID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int64("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

// isProbePath reports whether the path belongs to a liveness or
// readiness probe.
func isProbePath(path string) bool {
	return path == "/v1/ops/health" || path == "/v1/ops/ready"
}

// traceIDs extracts the active trace and span IDs from the context, or
// empty strings when the request is not being traced.
func traceIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
