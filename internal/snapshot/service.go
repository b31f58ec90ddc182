// Package snapshot orchestrates the full reconciliation pass and caches
// its result: collect retailer feeds, ingest the site directory, match,
// and serve the reconciled station set.
package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/match"
	"github.com/fuelscout/fuelscout/internal/station"
	"github.com/fuelscout/fuelscout/internal/worker"
)

// ErrNoSnapshot is returned when no snapshot has been built yet and the
// sources cannot produce one.
var ErrNoSnapshot = errors.New("no station snapshot available")

// LiveCollector runs one concurrent feed collection pass.
type LiveCollector interface {
	Run(ctx context.Context) *worker.CollectResult
}

// SiteSource fetches the authoritative site directory.
type SiteSource interface {
	FetchSites(ctx context.Context) ([]*station.Site, error)
}

// SourceMetricsRecorder receives cache and upstream fetch telemetry.
// Optional; a nil recorder disables recording.
type SourceMetricsRecorder interface {
	RecordRequest(source, operation string, duration time.Duration, err error)
	RecordCacheHit(source, operation string)
	RecordCacheMiss(source, operation string)
}

// Snapshot is one point-in-time reconciled view of the network.
type Snapshot struct {
	// Matched holds reconciled stations, live-priced and synthesized.
	Matched []*station.Reconciled

	// Unmatched holds live stations with no directory site, retained
	// for fallback display only.
	Unmatched []*station.Station

	// LiveCount is the number of matched entries with live pricing.
	LiveCount int

	// Averages are the national averages computed from the live set,
	// the same values backfilled onto synthesized entries.
	Averages station.Averages

	SiteCount  int
	FeedErrors []worker.FeedError
	RunID      string
	FetchedAt  time.Time
}

// ServiceConfig holds configuration for the snapshot service.
type ServiceConfig struct {
	// Collector runs the concurrent per-retailer feed pass.
	Collector LiveCollector

	// Directory supplies the authoritative site list. It is fetched
	// once and reused for the life of the service; a failed fetch is
	// retried on the next refresh.
	Directory SiteSource

	// Matcher reconciles live stations with directory sites.
	Matcher *match.Engine

	// FallbackAverages seed the national averages when the live set
	// carries no prices at all.
	FallbackAverages station.Averages

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics receives cache hit/miss and refresh telemetry. Optional.
	Metrics SourceMetricsRecorder

	// CacheTTL is how long a snapshot stays fresh (default: 5 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving a stale snapshot while the sources
	// are degraded (default: 30 minutes).
	StaleIfErrorTTL time.Duration
}

// Service builds and caches reconciled snapshots. Re-running a refresh
// over the same raw inputs produces an identical snapshot; there is no
// incremental update model.
type Service struct {
	collector       LiveCollector
	directory       SiteSource
	matcher         *match.Engine
	fallback        station.Averages
	logger          zerolog.Logger
	metrics         SourceMetricsRecorder
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration

	mu          sync.RWMutex
	current     *Snapshot
	cacheExpiry time.Time
	sites       []*station.Site
}

// NewService creates a snapshot service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}
	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	return &Service{
		collector:       cfg.Collector,
		directory:       cfg.Directory,
		matcher:         cfg.Matcher,
		fallback:        cfg.FallbackAverages,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// GetSnapshot returns the current snapshot, refreshing if the cache has
// expired.
func (s *Service) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.current != nil && time.Now().Before(s.cacheExpiry) {
		snap := s.current
		s.mu.RUnlock()
		s.recordCacheHit()
		return snap, nil
	}
	s.mu.RUnlock()

	s.recordCacheMiss()
	return s.refresh(ctx)
}

// Refresh forces a full reconciliation pass.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.cacheExpiry = time.Time{}
	s.mu.Unlock()
	_, err := s.refresh(ctx)
	return err
}

// InvalidateCache clears the cached snapshot and directory.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.cacheExpiry = time.Time{}
	s.sites = nil
}

// Averages returns the national averages over the chosen set: the full
// live set when matchedOnly is false, otherwise only live stations that
// reconciled against the directory.
func (s *Service) Averages(ctx context.Context, matchedOnly bool) (station.Averages, error) {
	snap, err := s.GetSnapshot(ctx)
	if err != nil {
		return s.fallback, err
	}
	if !matchedOnly {
		return snap.Averages, nil
	}
	return station.ComputeAverages(station.LiveOnly(snap.Matched), s.fallback), nil
}

func (s *Service) refresh(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if s.current != nil && time.Now().Before(s.cacheExpiry) {
		return s.current, nil
	}

	s.logger.Debug().Msg("refreshing station snapshot")

	collectStart := time.Now()
	collected := s.collector.Run(ctx)
	if s.metrics != nil {
		var collectErr error
		if collected.Succeeded == 0 && collected.Failed > 0 {
			collectErr = errors.New("all feeds failed")
		}
		s.metrics.RecordRequest("retailer-feeds", "collect", time.Since(collectStart), collectErr)
	}

	sites := s.loadDirectory(ctx)

	live := collected.Stations
	averages := station.ComputeAverages(live, s.fallback)
	result := s.matcher.Match(live, sites, averages)

	snap := &Snapshot{
		Matched:    result.Matched,
		Unmatched:  result.Unmatched,
		LiveCount:  result.LiveCount,
		Averages:   averages,
		SiteCount:  len(sites),
		FeedErrors: collected.Errors,
		RunID:      collected.RunID,
		FetchedAt:  time.Now(),
	}

	// A pass that produced nothing while every source failed is a
	// degradation, not new truth. Keep serving the previous snapshot
	// until it goes properly stale.
	if len(snap.Matched) == 0 && len(snap.Unmatched) == 0 && s.current != nil {
		if time.Now().Before(s.current.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", s.current.FetchedAt).
				Msg("serving stale snapshot, sources returned nothing")
			return s.current, nil
		}
	}

	if s.current == nil && len(snap.Matched) == 0 && len(snap.Unmatched) == 0 && len(collected.Errors) > 0 {
		return nil, ErrNoSnapshot
	}

	s.current = snap
	s.cacheExpiry = time.Now().Add(s.cacheTTL)

	s.logger.Info().
		Str("run_id", snap.RunID).
		Int("matched", len(snap.Matched)).
		Int("unmatched", len(snap.Unmatched)).
		Int("live_count", snap.LiveCount).
		Int("sites", snap.SiteCount).
		Int("feed_errors", len(snap.FeedErrors)).
		Msg("station snapshot refreshed")

	return snap, nil
}

// loadDirectory fetches the site list once and reuses it; the directory
// is read-only reference data. A failed fetch degrades to the previous
// list (or none) and is retried next refresh.
func (s *Service) loadDirectory(ctx context.Context) []*station.Site {
	if s.sites != nil {
		return s.sites
	}
	start := time.Now()
	sites, err := s.directory.FetchSites(ctx)
	if s.metrics != nil {
		s.metrics.RecordRequest("site-directory", "fetch", time.Since(start), err)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("site directory fetch failed")
		return nil
	}
	if len(sites) > 0 {
		s.sites = sites
	}
	return sites
}

func (s *Service) recordCacheHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit("snapshot", "get")
	}
}

func (s *Service) recordCacheMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss("snapshot", "get")
	}
}

// CacheStatus describes the current cache state for the ops surface.
type CacheStatus struct {
	HasData    bool
	FetchedAt  time.Time
	ExpiresAt  time.Time
	IsExpired  bool
	IsStale    bool
	Matched    int
	Unmatched  int
	LiveCount  int
	SiteCount  int
	FeedErrors int
}

// Status returns information about the cached snapshot.
func (s *Service) Status() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return CacheStatus{}
	}

	now := time.Now()
	return CacheStatus{
		HasData:    true,
		FetchedAt:  s.current.FetchedAt,
		ExpiresAt:  s.cacheExpiry,
		IsExpired:  now.After(s.cacheExpiry),
		IsStale:    now.After(s.current.FetchedAt.Add(s.staleIfErrorTTL)),
		Matched:    len(s.current.Matched),
		Unmatched:  len(s.current.Unmatched),
		LiveCount:  s.current.LiveCount,
		SiteCount:  s.current.SiteCount,
		FeedErrors: len(s.current.FeedErrors),
	}
}
