// Package main provides the entrypoint for the fuelscout API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/api"
	"github.com/fuelscout/fuelscout/internal/api/middleware"
	"github.com/fuelscout/fuelscout/internal/config"
	"github.com/fuelscout/fuelscout/internal/match"
	"github.com/fuelscout/fuelscout/internal/provider/resilience"
	"github.com/fuelscout/fuelscout/internal/snapshot"
	"github.com/fuelscout/fuelscout/internal/station"
	"github.com/fuelscout/fuelscout/internal/station/directory"
	"github.com/fuelscout/fuelscout/internal/station/feed"
	"github.com/fuelscout/fuelscout/internal/telemetry"
	"github.com/fuelscout/fuelscout/internal/worker"
	"github.com/fuelscout/fuelscout/pkg/geo"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fuelscout-api"

	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("FUELSCOUT_CONFIG"))
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup structured logging
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.App.Environment).
		Msg("starting fuelscout API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
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

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	sourceMetrics, err := middleware.NewSourceMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize source metrics")
		os.Exit(1)
	}

	// Source registry tracks per-retailer circuit health
	registry := resilience.NewRegistry()

	// Feed client with one circuit breaker per retailer
	feedClient := feed.NewClient(feed.ClientConfig{
		Endpoints: cfg.Feeds.ResolveEndpoints(),
		Timeout:   cfg.Feeds.Timeout,
		Registry:  registry,
		Logger:    log,
	})
	log.Info().
		Int("retailers", len(feedClient.Retailers())).
		Msg("feed client initialized")

	// Directory client for the authoritative site list
	directoryClient := directory.NewClient(directory.ClientConfig{
		URL:      cfg.Directory.URL,
		Timeout:  cfg.Directory.Timeout,
		Registry: registry,
		Logger:   log,
	})

	// Collection job runs the bounded concurrent feed pass
	collectJob := worker.NewCollectJob(worker.CollectJobConfig{
		Config: worker.CollectConfig{
			Concurrency: cfg.Feeds.Concurrency,
			FeedTimeout: cfg.Feeds.FeedTimeout,
		},
		Fetcher: feedClient,
		Logger:  log,
	})

	// Matching engine
	engine := match.NewEngine(match.Config{
		AllowDuplicateClaims: cfg.Match.AllowDuplicateClaims,
		InnerRadiusDeg:       cfg.Match.InnerRadiusDeg,
		OuterRadiusDeg:       cfg.Match.OuterRadiusDeg,
		Logger:               log,
	})

	// Snapshot service
	service := snapshot.NewService(snapshot.ServiceConfig{
		Collector: collectJob,
		Directory: directoryClient,
		Matcher:   engine,
		FallbackAverages: station.Averages{
			Petrol: cfg.Averages.PetrolFallback,
			Diesel: cfg.Averages.DieselFallback,
		},
		Logger:          log,
		Metrics:         sourceMetrics,
		CacheTTL:        cfg.Snapshot.CacheTTL,
		StaleIfErrorTTL: cfg.Snapshot.StaleIfErrorTTL,
	})
	log.Info().Msg("snapshot service initialized")

	// Pricing policy was validated during config load
	policy, err := cfg.Policy.ToPolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pricing policy")
	}

	// Warm the snapshot cache so the first request doesn't pay for a
	// full collection pass
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := service.Refresh(warmCtx); err != nil {
			log.Warn().Err(err).Msg("initial snapshot warm-up failed")
		}
	}()

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    metrics,
		Service:    service,
		CollectJob: collectJob,
		Registry:   registry,
		Policy:     policy,
		DefaultRef: geo.Point{Lat: cfg.Reference.Lat, Lon: cfg.Reference.Lon},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
