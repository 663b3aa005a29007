// Package api assembles the HTTP surface of the DelayCast prediction
// service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/api/handler"
	"github.com/delaycast/delaycast/internal/api/middleware"
	"github.com/delaycast/delaycast/internal/auth"
	"github.com/delaycast/delaycast/internal/prediction"
)

// RouterConfig carries the dependencies for NewRouter.
type RouterConfig struct {
	Version           string
	BuildTime         string
	Logger            zerolog.Logger
	ServiceName       string
	Metrics           *middleware.Metrics
	JWTService        *auth.JWTService
	PredictionService *prediction.Service
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "delaycast-api"
	}

	r := chi.NewRouter()

	// Request ID first so tracing and logging both see it. Recovery
	// sits inside logging so panics still produce an access log line.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS)
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.PredictionService)
	predictHandler := handler.NewPredictHandler(cfg.PredictionService, cfg.Logger)
	modelHandler := handler.NewModelHandler(cfg.PredictionService, cfg.Logger)
	metadataHandler := handler.NewMetadataHandler()

	requireAuth := middleware.Auth(cfg.JWTService)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(requireAuth).Get("/status", opsHandler.SystemStatus)
		})

		// Scoring is the hot path and gets the tightest per-IP budget.
		r.With(middleware.RateLimitByIP(middleware.PredictRateLimit)).
			Post("/predict", predictHandler.Predict)

		r.Route("/metadata", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
			r.Get("/enums", metadataHandler.GetEnums)
		})

		// Model management for the training pipeline's service accounts.
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RateLimitByService(middleware.AdminRateLimit))

			r.Route("/model", func(r chi.Router) {
				r.Get("/", modelHandler.GetModel)
				r.Post("/reload", modelHandler.ReloadModel)
			})
		})
	})

	return r
}
