// Package main provides the entrypoint for the fuelscout refresh worker.
// It keeps the station snapshot warm on a fixed cadence and exposes a
// health endpoint for the platform.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/config"
	"github.com/fuelscout/fuelscout/internal/match"
	"github.com/fuelscout/fuelscout/internal/provider/resilience"
	"github.com/fuelscout/fuelscout/internal/snapshot"
	"github.com/fuelscout/fuelscout/internal/station"
	"github.com/fuelscout/fuelscout/internal/station/directory"
	"github.com/fuelscout/fuelscout/internal/station/feed"
	"github.com/fuelscout/fuelscout/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fuelscout-worker"

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("FUELSCOUT_CONFIG"))
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("failed to load configuration")
	}

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
		Msg("starting fuelscout worker")

	registry := resilience.NewRegistry()

	feedClient := feed.NewClient(feed.ClientConfig{
		Endpoints: cfg.Feeds.ResolveEndpoints(),
		Timeout:   cfg.Feeds.Timeout,
		Registry:  registry,
		Logger:    log,
	})

	directoryClient := directory.NewClient(directory.ClientConfig{
		URL:      cfg.Directory.URL,
		Timeout:  cfg.Directory.Timeout,
		Registry: registry,
		Logger:   log,
	})

	collectJob := worker.NewCollectJob(worker.CollectJobConfig{
		Config: worker.CollectConfig{
			Concurrency: cfg.Feeds.Concurrency,
			FeedTimeout: cfg.Feeds.FeedTimeout,
		},
		Fetcher: feedClient,
		Logger:  log,
	})

	engine := match.NewEngine(match.Config{
		AllowDuplicateClaims: cfg.Match.AllowDuplicateClaims,
		InnerRadiusDeg:       cfg.Match.InnerRadiusDeg,
		OuterRadiusDeg:       cfg.Match.OuterRadiusDeg,
		Logger:               log,
	})

	service := snapshot.NewService(snapshot.ServiceConfig{
		Collector: collectJob,
		Directory: directoryClient,
		Matcher:   engine,
		FallbackAverages: station.Averages{
			Petrol: cfg.Averages.PetrolFallback,
			Diesel: cfg.Averages.DieselFallback,
		},
		Logger:          log,
		CacheTTL:        cfg.Snapshot.CacheTTL,
		StaleIfErrorTTL: cfg.Snapshot.StaleIfErrorTTL,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Health endpoint for the platform's liveness probe
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Refresh loop: one pass immediately, then on the cache cadence so
	// readers never see an expired snapshot
	go func() {
		runRefresh(ctx, service, log, cfg.Feeds.FeedTimeout)

		ticker := time.NewTicker(cfg.Snapshot.CacheTTL)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("refresh loop stopped")
				return
			case <-ticker.C:
				runRefresh(ctx, service, log, cfg.Feeds.FeedTimeout)
			}
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runRefresh performs one snapshot refresh with a bounded deadline.
func runRefresh(ctx context.Context, service *snapshot.Service, log zerolog.Logger, feedTimeout time.Duration) {
	// Allow every feed its full timeout plus directory and match headroom
	refreshCtx, cancel := context.WithTimeout(ctx, feedTimeout*2+time.Minute)
	defer cancel()

	start := time.Now()
	if err := service.Refresh(refreshCtx); err != nil {
		log.Error().Err(err).Msg("snapshot refresh failed")
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("snapshot refreshed")
}
