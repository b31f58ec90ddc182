// Package worker runs the concurrent per-retailer feed collection pass.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/station"
)

// FeedFetcher fetches and normalizes one retailer's feed.
type FeedFetcher interface {
	// Retailers returns the configured retailer names in stable order.
	Retailers() []string

	// FetchStations retrieves and normalizes one retailer's feed.
	FetchStations(ctx context.Context, retailer string) ([]*station.Station, error)
}

// CollectConfig holds configuration for the collection job.
type CollectConfig struct {
	// Concurrency is the worker pool size. Feeds are independent, so
	// they fetch in parallel. Default: 4.
	Concurrency int

	// FeedTimeout bounds each retailer fetch so one slow host cannot
	// block the aggregate result. Default: 15 seconds.
	FeedTimeout time.Duration
}

// CollectJobConfig holds dependencies for creating a CollectJob.
type CollectJobConfig struct {
	Config  CollectConfig
	Fetcher FeedFetcher
	Logger  zerolog.Logger
}

// CollectJob fetches every configured retailer feed through a bounded
// worker pool. A failed or timed-out feed degrades to zero records from
// that retailer; it never fails the pass.
type CollectJob struct {
	config  CollectConfig
	fetcher FeedFetcher
	logger  zerolog.Logger

	metricsMu sync.RWMutex
	metrics   CollectMetrics
}

// NewCollectJob creates a collection job.
func NewCollectJob(cfg CollectJobConfig) *CollectJob {
	config := cfg.Config
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.FeedTimeout <= 0 {
		config.FeedTimeout = 15 * time.Second
	}
	return &CollectJob{
		config:  config,
		fetcher: cfg.Fetcher,
		logger:  cfg.Logger,
	}
}

// FeedError records one retailer's fetch failure.
type FeedError struct {
	Retailer string
	Error    string
}

// CollectResult is the outcome of one collection pass.
type CollectResult struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Stations holds every normalized station, assembled in retailer
	// order so repeated passes over the same inputs are identical.
	Stations []*station.Station

	Succeeded int
	Failed    int
	Errors    []FeedError
}

type feedResult struct {
	retailer string
	stations []*station.Station
	err      error
}

// Run executes one collection pass over all configured retailers.
func (j *CollectJob) Run(ctx context.Context) *CollectResult {
	retailers := j.fetcher.Retailers()
	result := &CollectResult{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
	}

	j.logger.Info().
		Str("run_id", result.RunID).
		Int("retailers", len(retailers)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting feed collection pass")

	work := make(chan string, len(retailers))
	results := make(chan feedResult, len(retailers))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.collectWorker(ctx, work, results)
		}()
	}

	for _, r := range retailers {
		work <- r
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect per-retailer outcomes, then reassemble stations in the
	// fixed retailer order regardless of completion order.
	byRetailer := make(map[string][]*station.Station, len(retailers))
	for fr := range results {
		if fr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, FeedError{
				Retailer: fr.retailer,
				Error:    fr.err.Error(),
			})
			continue
		}
		result.Succeeded++
		byRetailer[fr.retailer] = fr.stations
	}
	for _, r := range retailers {
		result.Stations = append(result.Stations, byRetailer[r]...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	j.recordMetrics(result)

	j.logger.Info().
		Str("run_id", result.RunID).
		Dur("duration", result.Duration).
		Int("stations", len(result.Stations)).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("feed collection pass complete")

	return result
}

func (j *CollectJob) collectWorker(ctx context.Context, work <-chan string, results chan<- feedResult) {
	for retailer := range work {
		select {
		case <-ctx.Done():
			results <- feedResult{retailer: retailer, err: ctx.Err()}
		default:
			results <- j.collectFeed(ctx, retailer)
		}
	}
}

func (j *CollectJob) collectFeed(ctx context.Context, retailer string) feedResult {
	feedCtx, cancel := context.WithTimeout(ctx, j.config.FeedTimeout)
	defer cancel()

	stations, err := j.fetcher.FetchStations(feedCtx, retailer)
	if err != nil {
		j.logger.Warn().
			Str("retailer", retailer).
			Err(err).
			Msg("feed fetch failed, degrading to zero records")
		return feedResult{retailer: retailer, err: err}
	}

	j.logger.Debug().
		Str("retailer", retailer).
		Int("stations", len(stations)).
		Msg("feed collected")
	return feedResult{retailer: retailer, stations: stations}
}

// Metrics returns a copy of the accumulated job metrics.
func (j *CollectJob) Metrics() CollectMetrics {
	j.metricsMu.RLock()
	defer j.metricsMu.RUnlock()
	return j.metrics
}

// CollectMetrics tracks collection job statistics across runs.
type CollectMetrics struct {
	TotalRuns       int64
	SucceededFeeds  int64
	FailedFeeds     int64
	LastRunID       string
	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastStationCnt  int
}

func (j *CollectJob) recordMetrics(result *CollectResult) {
	j.metricsMu.Lock()
	defer j.metricsMu.Unlock()
	j.metrics.TotalRuns++
	j.metrics.SucceededFeeds += int64(result.Succeeded)
	j.metrics.FailedFeeds += int64(result.Failed)
	j.metrics.LastRunID = result.RunID
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.LastStationCnt = len(result.Stations)
}
