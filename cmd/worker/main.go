// Package main is the entrypoint for the DelayCast ingestion worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/api/middleware"
	"github.com/delaycast/delaycast/internal/database"
	"github.com/delaycast/delaycast/internal/flights"
	"github.com/delaycast/delaycast/internal/ingestion"
	"github.com/delaycast/delaycast/internal/ingestion/opsfeed"
	"github.com/delaycast/delaycast/internal/ingestion/resilience"
	"github.com/delaycast/delaycast/internal/telemetry"
	"github.com/delaycast/delaycast/internal/worker"
)

const serviceName = "delaycast-worker"

// Version and BuildTime are stamped by the release build via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// config collects everything the worker reads from the environment.
type config struct {
	port             string
	environment      string
	otlpEndpoint     string
	otelEnabled      bool
	feedBaseURL      string
	feedAPIKey       string
	ingestWindowDays int
	projectID        string
	subscription     string
}

func configFromEnv() config {
	cfg := config{
		port:         envOr("APP_PORT", "8080"),
		environment:  envOr("APP_ENV", "development"),
		otlpEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		otelEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		feedBaseURL:  os.Getenv("OPSFEED_BASE_URL"),
		feedAPIKey:   os.Getenv("OPSFEED_API_KEY"),
		projectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		subscription: envOr("PUBSUB_SUBSCRIPTION", "delaycast-worker-jobs"),
	}
	if v := os.Getenv("INGEST_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ingestWindowDays = n
		}
	}
	return cfg
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
		log.Error().Err(err).Msg("worker exited")
		os.Exit(1)
	}
}

func run(log zerolog.Logger, cfg config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.environment).
		Msg("delaycast worker starting")

	if cfg.feedBaseURL == "" {
		return errors.New("OPSFEED_BASE_URL is required")
	}
	if cfg.projectID == "" {
		return errors.New("PUBSUB_PROJECT_ID is required")
	}
	if cfg.feedAPIKey == "" {
		log.Warn().Msg("OPSFEED_API_KEY not set, feed requests will be unauthenticated")
	}

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

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	log.Info().
		Str("database", dbConfig.Database).
		Str("host", dbConfig.Host).
		Msg("database connected")

	repo := flights.NewPostgresRepository(pool)

	feedMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		return fmt.Errorf("init feed metrics: %w", err)
	}
	feedRegistry := resilience.NewRegistry()

	feedClient := opsfeed.NewClient(opsfeed.ClientConfig{
		BaseURL:  cfg.feedBaseURL,
		APIKey:   cfg.feedAPIKey,
		Registry: feedRegistry,
		Metrics:  feedMetrics,
	})
	log.Info().Str("base_url", cfg.feedBaseURL).Msg("operations feed client ready")

	ingestService := ingestion.NewService(feedClient, repo, log)

	ingestConfig := worker.DefaultIngestConfig()
	if cfg.ingestWindowDays > 0 {
		ingestConfig.WindowDays = cfg.ingestWindowDays
	}
	ingestJob := worker.NewIngestJob(worker.IngestJobConfig{
		Config:  ingestConfig,
		Service: ingestService,
		Logger:  log,
	})

	pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.projectID,
		SubscriptionName: cfg.subscription,
		IngestJob:        ingestJob,
		Logger:           log,
	})
	if err != nil {
		return fmt.Errorf("create pubsub handler: %w", err)
	}
	defer pubsubHandler.Close()

	go func() {
		if err := pubsubHandler.Start(ctx); err != nil {
			log.Error().Err(err).Msg("pubsub handler stopped")
		}
	}()

	// The scheduler platform probes this endpoint between job runs.
	server := &http.Server{
		Addr:         ":" + cfg.port,
		Handler:      healthHandler(feedRegistry, ingestJob),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health endpoint listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve health endpoint: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown health endpoint: %w", err)
	}

	log.Info().Msg("worker stopped")
	return nil
}

// healthHandler reports worker status: overall health, ingest counters and
// the circuit state of every registered feed.
func healthHandler(registry *resilience.Registry, job *worker.IngestJob) http.Handler {
	type feedStatus struct {
		Name      string `json:"name"`
		State     string `json:"state"`
		LastError string `json:"last_error,omitempty"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		status := "healthy"
		feeds := make([]feedStatus, 0)
		for _, h := range registry.GetAllHealth() {
			if h.IsUnhealthy() {
				status = "degraded"
			}
			feeds = append(feeds, feedStatus{
				Name:      h.Name,
				State:     h.CircuitState.String(),
				LastError: h.LastError,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  status,
			"version": Version,
			"ingest":  job.MetricsSnapshot(),
			"feeds":   feeds,
		})
	})
	return mux
}
