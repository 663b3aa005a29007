package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/delaycast/delaycast/internal/api/models"
)

// RateLimitConfig bounds request volume over a sliding window.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window.
	RequestLimit int
	// WindowLength is the window duration.
	WindowLength time.Duration
}

// Rate limits by endpoint category. The scoring endpoint pays for model
// compute on every call, so it gets the tightest public budget.
var (
	// AdminRateLimit covers the model administration endpoints.
	AdminRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}

	// PredictRateLimit covers the scoring endpoint.
	PredictRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit covers everything else.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client IP. The RealIP middleware
// must run earlier in the chain so the key reflects X-Forwarded-For.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limiter(cfg, httprate.KeyByRealIP)
}

// RateLimitByService limits requests per authenticated service, falling
// back to the client IP for unauthenticated requests.
func RateLimitByService(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limiter(cfg, keyByServiceOrIP)
}

func limiter(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(limitExceededHandler(cfg.WindowLength)),
	)
}

func keyByServiceOrIP(r *http.Request) (string, error) {
	if service := GetService(r.Context()); service != "" {
		return "svc:" + service, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitExceededHandler writes the 429 problem response. Retry-After is
// the window length rounded up to whole seconds, the worst-case wait
// until the counter resets.
func limitExceededHandler(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int((window + time.Second - 1) / time.Second))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)

		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path
		problem.Write(w)
	}
}
