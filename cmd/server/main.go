// Package main provides the entrypoint for the table timer coordination
// service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tabletimer/tabletimer/internal/api"
	"github.com/tabletimer/tabletimer/internal/api/middleware"
	"github.com/tabletimer/tabletimer/internal/bar"
	"github.com/tabletimer/tabletimer/internal/discovery"
	"github.com/tabletimer/tabletimer/internal/notify"
	"github.com/tabletimer/tabletimer/internal/registry"
	"github.com/tabletimer/tabletimer/internal/telemetry"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	const serviceName = "tabletimer"

	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	port := envInt(log, "APP_PORT", 3000)
	discoveryPort := envInt(log, "DISCOVERY_PORT", discovery.DefaultPort)

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	tracker := notify.NewTracker()

	registryService := registry.NewService(registry.Config{
		Repo:    registry.NewInMemoryRepository(),
		Tracker: tracker,
		Logger:  log,
	})
	log.Info().Msg("device registry initialized")

	barStore := bar.NewStore(bar.Config{
		Tracker: tracker,
		Logger:  log,
	})

	router := api.NewRouter(api.RouterConfig{
		ServiceName:     serviceName,
		Version:         Version,
		Port:            port,
		Logger:          log,
		Metrics:         metrics,
		RegistryService: registryService,
		BarStore:        barStore,
	})

	// UDP discovery lets devices find the service without configuration.
	responder := discovery.NewResponder(discoveryPort, log)
	if err := responder.Start(); err != nil {
		log.Fatal().Err(err).Int("port", discoveryPort).Msg("failed to start discovery responder")
	}
	defer responder.Stop()
	log.Info().Int("port", discoveryPort).Msg("discovery responder listening")

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func envInt(log zerolog.Logger, key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid integer in environment, using default")
		return fallback
	}
	return v
}
