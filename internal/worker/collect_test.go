package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelscout/fuelscout/internal/station"
)

type mockFetcher struct {
	mu        sync.Mutex
	retailers []string
	stations  map[string][]*station.Station
	errs      map[string]error
	delay     map[string]time.Duration
	inFlight  atomic.Int64
	maxSeen   atomic.Int64
}

func (m *mockFetcher) Retailers() []string {
	return m.retailers
}

func (m *mockFetcher) FetchStations(ctx context.Context, retailer string) ([]*station.Station, error) {
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxSeen.Load()
		if cur <= prev || m.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}

	if d := m.delay[retailer]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[retailer]; err != nil {
		return nil, err
	}
	return m.stations[retailer], nil
}

func singleStation(id string) []*station.Station {
	petrol := 1.419
	return []*station.Station{{ID: id, PetrolPrice: &petrol}}
}

func newTestJob(fetcher FeedFetcher, cfg CollectConfig) *CollectJob {
	return NewCollectJob(CollectJobConfig{
		Config:  cfg,
		Fetcher: fetcher,
		Logger:  zerolog.Nop(),
	})
}

func TestRun_CollectsAllFeeds(t *testing.T) {
	fetcher := &mockFetcher{
		retailers: []string{"asda", "bp", "shell"},
		stations: map[string][]*station.Station{
			"asda":  singleStation("asda-1"),
			"bp":    singleStation("bp-1"),
			"shell": singleStation("shell-1"),
		},
	}

	result := newTestJob(fetcher, CollectConfig{Concurrency: 2}).Run(context.Background())

	assert.Equal(t, 3, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Stations, 3)
}

func TestRun_StationsInRetailerOrder(t *testing.T) {
	// The slowest feed finishes last, but assembly order must follow the
	// fixed retailer order.
	fetcher := &mockFetcher{
		retailers: []string{"asda", "bp", "shell"},
		stations: map[string][]*station.Station{
			"asda":  singleStation("asda-1"),
			"bp":    singleStation("bp-1"),
			"shell": singleStation("shell-1"),
		},
		delay: map[string]time.Duration{"asda": 30 * time.Millisecond},
	}

	result := newTestJob(fetcher, CollectConfig{Concurrency: 3}).Run(context.Background())

	require.Len(t, result.Stations, 3)
	assert.Equal(t, "asda-1", result.Stations[0].ID)
	assert.Equal(t, "bp-1", result.Stations[1].ID)
	assert.Equal(t, "shell-1", result.Stations[2].ID)
}

func TestRun_FailedFeedDegradesToZeroRecords(t *testing.T) {
	fetcher := &mockFetcher{
		retailers: []string{"asda", "bp"},
		stations:  map[string][]*station.Station{"asda": singleStation("asda-1")},
		errs:      map[string]error{"bp": errors.New("upstream 500")},
	}

	result := newTestJob(fetcher, CollectConfig{Concurrency: 2}).Run(context.Background())

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bp", result.Errors[0].Retailer)
	assert.Contains(t, result.Errors[0].Error, "upstream 500")
	require.Len(t, result.Stations, 1)
	assert.Equal(t, "asda-1", result.Stations[0].ID)
}

func TestRun_ConcurrencyIsBounded(t *testing.T) {
	fetcher := &mockFetcher{
		retailers: []string{"a", "b", "c", "d", "e", "f"},
		stations:  map[string][]*station.Station{},
		delay: map[string]time.Duration{
			"a": 10 * time.Millisecond, "b": 10 * time.Millisecond,
			"c": 10 * time.Millisecond, "d": 10 * time.Millisecond,
			"e": 10 * time.Millisecond, "f": 10 * time.Millisecond,
		},
	}

	newTestJob(fetcher, CollectConfig{Concurrency: 2}).Run(context.Background())

	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int64(2))
}

func TestRun_PerFeedTimeout(t *testing.T) {
	fetcher := &mockFetcher{
		retailers: []string{"slow", "fast"},
		stations:  map[string][]*station.Station{"fast": singleStation("fast-1")},
		delay:     map[string]time.Duration{"slow": 500 * time.Millisecond},
	}

	result := newTestJob(fetcher, CollectConfig{
		Concurrency: 2,
		FeedTimeout: 20 * time.Millisecond,
	}).Run(context.Background())

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Stations, 1)
	assert.Equal(t, "fast-1", result.Stations[0].ID)
}

func TestMetrics_Accumulate(t *testing.T) {
	fetcher := &mockFetcher{
		retailers: []string{"asda", "bp"},
		stations:  map[string][]*station.Station{"asda": singleStation("asda-1")},
		errs:      map[string]error{"bp": errors.New("down")},
	}

	job := newTestJob(fetcher, CollectConfig{Concurrency: 2})
	first := job.Run(context.Background())
	job.Run(context.Background())

	m := job.Metrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.SucceededFeeds)
	assert.Equal(t, int64(2), m.FailedFeeds)
	assert.NotEqual(t, first.RunID, m.LastRunID)
	assert.Equal(t, 1, m.LastStationCnt)
	assert.False(t, m.LastRunAt.IsZero())
}

func TestNewCollectJob_Defaults(t *testing.T) {
	job := newTestJob(&mockFetcher{}, CollectConfig{})
	assert.Equal(t, 4, job.config.Concurrency)
	assert.Equal(t, 15*time.Second, job.config.FeedTimeout)
}
