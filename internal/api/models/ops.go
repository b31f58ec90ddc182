package models

import "time"

// HealthStatus values for ops endpoints.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
)

// Health is the liveness/readiness response body.
type Health struct {
	Status  string                 `json:"status"`
	Time    time.Time              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SourceStatus describes one upstream source's circuit state.
type SourceStatus struct {
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	CircuitState  string     `json:"circuitState"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// CacheStatusView describes the snapshot cache for the status endpoint.
type CacheStatusView struct {
	HasData    bool       `json:"hasData"`
	FetchedAt  *time.Time `json:"fetchedAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	IsExpired  bool       `json:"isExpired"`
	IsStale    bool       `json:"isStale"`
	Matched    int        `json:"matched"`
	Unmatched  int        `json:"unmatched"`
	LiveCount  int        `json:"liveCount"`
	SiteCount  int        `json:"siteCount"`
	FeedErrors int        `json:"feedErrors"`
}

// CollectStatusView summarises the feed collection job.
type CollectStatusView struct {
	TotalRuns       int64         `json:"totalRuns"`
	SucceededFeeds  int64         `json:"succeededFeeds"`
	FailedFeeds     int64         `json:"failedFeeds"`
	LastRunID       string        `json:"lastRunId,omitempty"`
	LastRunAt       *time.Time    `json:"lastRunAt,omitempty"`
	LastRunDuration time.Duration `json:"lastRunDurationNs,omitempty"`
	LastStationCnt  int           `json:"lastStationCount"`
}

// SystemStatus is the full ops status response.
type SystemStatus struct {
	Status  string            `json:"status"`
	Time    time.Time         `json:"time"`
	Cache   CacheStatusView   `json:"cache"`
	Collect CollectStatusView `json:"collect"`
	Sources []SourceStatus    `json:"sources"`
}
