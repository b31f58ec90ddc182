package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelscout/fuelscout/internal/match"
	"github.com/fuelscout/fuelscout/internal/station"
	"github.com/fuelscout/fuelscout/internal/worker"
)

type mockCollector struct {
	calls  atomic.Int64
	result func() *worker.CollectResult
}

func (m *mockCollector) Run(_ context.Context) *worker.CollectResult {
	m.calls.Add(1)
	return m.result()
}

type mockDirectory struct {
	calls atomic.Int64
	sites []*station.Site
	err   error
}

func (m *mockDirectory) FetchSites(_ context.Context) ([]*station.Site, error) {
	m.calls.Add(1)
	return m.sites, m.err
}

func liveResult(ids ...string) *worker.CollectResult {
	stations := make([]*station.Station, 0, len(ids))
	for _, id := range ids {
		petrol := 1.419
		diesel := 1.499
		stations = append(stations, &station.Station{
			ID:          id,
			Brand:       "SHELL",
			Name:        "Live " + id,
			Postcode:    "TW5 9NB",
			PetrolPrice: &petrol,
			DieselPrice: &diesel,
			IsOpen:      true,
		})
	}
	return &worker.CollectResult{
		RunID:     "run-" + time.Now().Format("150405.000000000"),
		Stations:  stations,
		Succeeded: 1,
	}
}

func testSites() []*station.Site {
	return []*station.Site{
		{SiteNo: 101, Name: "HESTON", Brand: "SHELL", Postcode: "TW5 9NB", Petrol: true, Diesel: true},
		{SiteNo: 102, Name: "MEMBURY", Brand: "BP", Postcode: "RG17 7TZ", Petrol: true, Diesel: true},
	}
}

func newTestService(collector LiveCollector, dir SiteSource, cacheTTL time.Duration) *Service {
	return NewService(ServiceConfig{
		Collector:        collector,
		Directory:        dir,
		Matcher:          match.NewEngine(match.Config{Logger: zerolog.Nop()}),
		FallbackAverages: station.Averages{Petrol: 1.452, Diesel: 1.534},
		Logger:           zerolog.Nop(),
		CacheTTL:         cacheTTL,
	})
}

func TestGetSnapshot_BuildsAndCaches(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult { return liveResult("shell-1") }}
	dir := &mockDirectory{sites: testSites()}
	svc := newTestService(collector, dir, time.Minute)

	snap, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)

	// One live match plus one synthesized unclaimed site
	assert.Len(t, snap.Matched, 2)
	assert.Equal(t, 1, snap.LiveCount)
	assert.Equal(t, 2, snap.SiteCount)
	assert.NotEmpty(t, snap.RunID)

	// Second call inside the TTL serves the cache
	again, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, int64(1), collector.calls.Load())
}

func TestGetSnapshot_RefreshesAfterExpiry(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult { return liveResult("shell-1") }}
	dir := &mockDirectory{sites: testSites()}
	svc := newTestService(collector, dir, time.Nanosecond)

	_, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = svc.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), collector.calls.Load())
}

func TestGetSnapshot_DirectoryFetchedOnce(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult { return liveResult("shell-1") }}
	dir := &mockDirectory{sites: testSites()}
	svc := newTestService(collector, dir, time.Nanosecond)

	for i := 0; i < 3; i++ {
		_, err := svc.GetSnapshot(context.Background())
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, int64(1), dir.calls.Load())
}

func TestGetSnapshot_DirectoryFailureRetriedNextRefresh(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult { return liveResult("shell-1") }}
	dir := &mockDirectory{err: errors.New("boom")}
	svc := newTestService(collector, dir, time.Nanosecond)

	snap, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.SiteCount)

	// Directory recovers; the next refresh picks it up
	dir.err = nil
	dir.sites = testSites()
	time.Sleep(time.Millisecond)

	snap, err = svc.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.SiteCount)
	assert.Equal(t, int64(2), dir.calls.Load())
}

func TestGetSnapshot_ServesStaleWhenSourcesDie(t *testing.T) {
	healthy := true
	collector := &mockCollector{result: func() *worker.CollectResult {
		if healthy {
			return liveResult("shell-1")
		}
		return &worker.CollectResult{
			RunID:  "run-dead",
			Failed: 1,
			Errors: []worker.FeedError{{Retailer: "shell", Error: "connection refused"}},
		}
	}}
	dir := &mockDirectory{}
	svc := newTestService(collector, dir, time.Nanosecond)

	first, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first.Matched)

	healthy = false
	time.Sleep(time.Millisecond)

	stale, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.RunID, stale.RunID)
}

func TestGetSnapshot_NoDataEver(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult {
		return &worker.CollectResult{
			RunID:  "run-dead",
			Failed: 1,
			Errors: []worker.FeedError{{Retailer: "shell", Error: "connection refused"}},
		}
	}}
	dir := &mockDirectory{}
	svc := newTestService(collector, dir, time.Minute)

	_, err := svc.GetSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestAverages(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult {
		res := liveResult("shell-1", "shell-2")
		p1, d1 := 1.40, 1.50
		p2, d2 := 1.44, 1.54
		res.Stations[0].PetrolPrice = &p1
		res.Stations[0].DieselPrice = &d1
		res.Stations[1].PetrolPrice = &p2
		res.Stations[1].DieselPrice = &d2
		// Second station gets a postcode that matches no site
		res.Stations[1].Postcode = "ZZ9 9ZZ"
		res.Stations[1].Brand = "NOBRAND"
		return res
	}}
	dir := &mockDirectory{sites: testSites()}
	svc := newTestService(collector, dir, time.Minute)

	t.Run("full live set", func(t *testing.T) {
		avg, err := svc.Averages(context.Background(), false)
		require.NoError(t, err)
		assert.InDelta(t, 1.42, avg.Petrol, 1e-9)
		assert.InDelta(t, 1.52, avg.Diesel, 1e-9)
	})

	t.Run("matched only", func(t *testing.T) {
		avg, err := svc.Averages(context.Background(), true)
		require.NoError(t, err)
		assert.InDelta(t, 1.40, avg.Petrol, 1e-9)
		assert.InDelta(t, 1.50, avg.Diesel, 1e-9)
	})
}

func TestInvalidateCache(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult { return liveResult("shell-1") }}
	dir := &mockDirectory{sites: testSites()}
	svc := newTestService(collector, dir, time.Hour)

	_, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)

	svc.InvalidateCache()

	_, err = svc.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), collector.calls.Load())
	assert.Equal(t, int64(2), dir.calls.Load())
}

func TestStatus(t *testing.T) {
	collector := &mockCollector{result: func() *worker.CollectResult { return liveResult("shell-1") }}
	dir := &mockDirectory{sites: testSites()}
	svc := newTestService(collector, dir, time.Hour)

	assert.False(t, svc.Status().HasData)

	_, err := svc.GetSnapshot(context.Background())
	require.NoError(t, err)

	status := svc.Status()
	assert.True(t, status.HasData)
	assert.False(t, status.IsExpired)
	assert.False(t, status.IsStale)
	assert.Equal(t, 2, status.Matched)
	assert.Equal(t, 1, status.LiveCount)
	assert.Equal(t, 2, status.SiteCount)
}
