// Package main is the entrypoint for the DelayCast API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/api"
	"github.com/delaycast/delaycast/internal/api/middleware"
	"github.com/delaycast/delaycast/internal/auth"
	"github.com/delaycast/delaycast/internal/modelstore"
	"github.com/delaycast/delaycast/internal/prediction"
	"github.com/delaycast/delaycast/internal/telemetry"
)

const serviceName = "delaycast-api"

// Version and BuildTime are stamped by the release build via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// config collects everything the server reads from the environment.
type config struct {
	port          string
	environment   string
	otlpEndpoint  string
	otelEnabled   bool
	modelPath     string
	watchModel    bool
	jwtSigningKey string
}

func configFromEnv() config {
	return config{
		port:          envOr("APP_PORT", "8080"),
		environment:   envOr("APP_ENV", "development"),
		otlpEndpoint:  envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		otelEnabled:   os.Getenv("OTEL_ENABLED") == "true",
		modelPath:     envOr("MODEL_PATH", "data/model.json"),
		watchModel:    os.Getenv("MODEL_WATCH") != "false",
		jwtSigningKey: os.Getenv("JWT_SIGNING_KEY"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := run(log, configFromEnv()); err != nil {
		log.Error().Err(err).Msg("api server exited")
		os.Exit(1)
	}
}

func run(log zerolog.Logger, cfg config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.environment).
		Msg("delaycast api starting")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.environment,
		OTLPEndpoint:   cfg.otlpEndpoint,
		Enabled:        cfg.otelEnabled,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown failed")
		}
	}()
	if cfg.otelEnabled {
		log.Info().Str("otlp_endpoint", cfg.otlpEndpoint).Msg("exporting telemetry")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store := modelstore.NewFileStore(modelstore.FileStoreConfig{
		Path:   cfg.modelPath,
		Logger: log,
	})
	predictor, err := prediction.NewService(prediction.Config{
		Store:  store,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("init prediction service: %w", err)
	}
	log.Info().Str("model_path", cfg.modelPath).Msg("prediction service ready")

	// Pick up newly trained artifacts without a restart. MODEL_WATCH=false
	// turns this off on read-only deployments.
	if cfg.watchModel {
		watcher, err := modelstore.NewWatcher(cfg.modelPath, log, func() {
			if err := predictor.Reload(ctx); err != nil {
				log.Error().Err(err).Msg("model reload after artifact change failed")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("model watcher disabled")
		} else {
			defer watcher.Close()
			go func() {
				if err := watcher.Run(ctx); err != nil {
					log.Error().Err(err).Msg("model watcher stopped")
				}
			}()
		}
	}

	signingKey := cfg.jwtSigningKey
	if signingKey == "" {
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("JWT_SIGNING_KEY not set, admin tokens use the insecure development key")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{SigningKey: signingKey})

	router := api.NewRouter(api.RouterConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Logger:            log,
		ServiceName:       serviceName,
		Metrics:           metrics,
		JWTService:        jwtService,
		PredictionService: predictor,
	})

	server := &http.Server{
		Addr:         ":" + cfg.port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("api server stopped")
	return nil
}
