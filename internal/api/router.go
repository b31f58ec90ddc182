// Package api provides the HTTP API for fuelscout.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/api/handler"
	"github.com/fuelscout/fuelscout/internal/api/middleware"
	"github.com/fuelscout/fuelscout/internal/pricing"
	"github.com/fuelscout/fuelscout/internal/provider/resilience"
	"github.com/fuelscout/fuelscout/internal/snapshot"
	"github.com/fuelscout/fuelscout/internal/worker"
	"github.com/fuelscout/fuelscout/pkg/geo"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version    string
	BuildTime  string
	Logger     zerolog.Logger
	Metrics    *middleware.Metrics
	Service    *snapshot.Service
	CollectJob *worker.CollectJob
	Registry   *resilience.Registry
	Policy     pricing.Policy
	DefaultRef geo.Point
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing)   // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Service, cfg.CollectJob, cfg.Registry)
	stationHandler := handler.NewStationHandler(cfg.Service, cfg.Policy, cfg.DefaultRef)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Station listing walks the full snapshot - strict rate limiting
		r.Route("/stations", func(r chi.Router) {
			r.With(expensiveRateLimit).Get("/", stationHandler.ListStations)
			r.With(standardRateLimit).Get("/{siteNo}/prices", stationHandler.StationPrices)
		})

		// National averages - standard rate limiting
		r.With(standardRateLimit).Get("/averages", stationHandler.Averages)
	})

	return r
}
