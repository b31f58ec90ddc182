package handler

import (
	"net/http"
	"time"

	"github.com/fuelscout/fuelscout/internal/api/models"
	"github.com/fuelscout/fuelscout/internal/api/response"
	"github.com/fuelscout/fuelscout/internal/provider/resilience"
	"github.com/fuelscout/fuelscout/internal/snapshot"
	"github.com/fuelscout/fuelscout/internal/worker"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	service   *snapshot.Service
	collect   *worker.CollectJob
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, service *snapshot.Service, collect *worker.CollectJob, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		service:   service,
		collect:   collect,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Ready
// means a snapshot exists and is not past its stale window.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Status()

	status := models.HealthStatusOK
	code := http.StatusOK
	if !cache.HasData {
		status = models.HealthStatusDown
		code = http.StatusServiceUnavailable
	} else if cache.IsStale {
		status = models.HealthStatusDegraded
	}

	response.JSON(w, r, code, models.Health{
		Status: status,
		Time:   time.Now(),
	})
}

// SystemStatus handles GET /v1/ops/status - cache, collection, and
// per-source circuit status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Status()
	metrics := h.collect.Metrics()
	sources := h.registry.Health()

	overall := models.HealthStatusOK
	if !cache.HasData {
		overall = models.HealthStatusDown
	} else if cache.IsStale || cache.FeedErrors > 0 {
		overall = models.HealthStatusDegraded
	}

	status := models.SystemStatus{
		Status:  overall,
		Time:    time.Now(),
		Cache:   cacheStatusView(cache),
		Collect: collectStatusView(metrics),
		Sources: make([]models.SourceStatus, 0, len(sources)),
	}

	for _, src := range sources {
		srcStatus := models.HealthStatusOK
		if !src.Healthy() {
			srcStatus = models.HealthStatusDegraded
		}
		status.Sources = append(status.Sources, models.SourceStatus{
			Name:          src.Name,
			Status:        srcStatus,
			CircuitState:  src.CircuitState.String(),
			LastSuccessAt: src.LastSuccessAt,
			LastFailureAt: src.LastFailureAt,
			LastError:     src.LastError,
		})
	}

	response.JSON(w, r, http.StatusOK, status)
}

func cacheStatusView(cache snapshot.CacheStatus) models.CacheStatusView {
	v := models.CacheStatusView{
		HasData:    cache.HasData,
		IsExpired:  cache.IsExpired,
		IsStale:    cache.IsStale,
		Matched:    cache.Matched,
		Unmatched:  cache.Unmatched,
		LiveCount:  cache.LiveCount,
		SiteCount:  cache.SiteCount,
		FeedErrors: cache.FeedErrors,
	}
	if cache.HasData {
		fetchedAt := cache.FetchedAt
		expiresAt := cache.ExpiresAt
		v.FetchedAt = &fetchedAt
		v.ExpiresAt = &expiresAt
	}
	return v
}

func collectStatusView(m worker.CollectMetrics) models.CollectStatusView {
	v := models.CollectStatusView{
		TotalRuns:       m.TotalRuns,
		SucceededFeeds:  m.SucceededFeeds,
		FailedFeeds:     m.FailedFeeds,
		LastRunID:       m.LastRunID,
		LastRunDuration: m.LastRunDuration,
		LastStationCnt:  m.LastStationCnt,
	}
	if !m.LastRunAt.IsZero() {
		lastRunAt := m.LastRunAt
		v.LastRunAt = &lastRunAt
	}
	return v
}
