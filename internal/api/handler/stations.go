// Package handler provides HTTP handlers for the fuelscout API.
package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuelscout/fuelscout/internal/api/models"
	"github.com/fuelscout/fuelscout/internal/api/response"
	"github.com/fuelscout/fuelscout/internal/pricing"
	"github.com/fuelscout/fuelscout/internal/snapshot"
	"github.com/fuelscout/fuelscout/internal/station"
	"github.com/fuelscout/fuelscout/pkg/geo"
)

// StationHandler handles station listing and pricing endpoints.
type StationHandler struct {
	service    *snapshot.Service
	policy     pricing.Policy
	defaultRef geo.Point
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(service *snapshot.Service, policy pricing.Policy, defaultRef geo.Point) *StationHandler {
	return &StationHandler{
		service:    service,
		policy:     policy,
		defaultRef: defaultRef,
	}
}

// ListStations handles GET /v1/stations - the reconciled station list.
//
// Query parameters:
//   - q: free-text filter over name, brand, address, postcode, town, site number
//   - lat, lon: reference point for distance sorting (both or neither)
//   - matched: "false" appends live stations that found no directory site
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.parseReference(w, r)
	if !ok {
		return
	}

	snap, err := h.service.GetSnapshot(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "station data is temporarily unavailable")
		return
	}

	query := r.URL.Query().Get("q")

	filtered := station.FilterAndSort(snap.Matched, query, ref)
	views := make([]models.StationView, 0, len(filtered))
	for _, rec := range filtered {
		views = append(views, stationView(rec))
	}

	// The fallback display appends live stations that claimed no
	// directory site, interleaved into the same distance order.
	if r.URL.Query().Get("matched") == "false" {
		for _, u := range station.FilterUnmatched(snap.Unmatched, query, ref) {
			views = append(views, unmatchedView(u))
		}
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].DistanceKm < views[j].DistanceKm
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	response.JSON(w, r, http.StatusOK, models.StationListResponse{
		Stations:  views,
		Count:     len(views),
		LiveCount: snap.LiveCount,
		FetchedAt: snap.FetchedAt,
	})
}

// StationPrices handles GET /v1/stations/{siteNo}/prices - member prices
// for one reconciled site under the active schedule.
func (h *StationHandler) StationPrices(w http.ResponseWriter, r *http.Request) {
	siteNo, err := strconv.Atoi(chi.URLParam(r, "siteNo"))
	if err != nil || siteNo <= 0 {
		response.BadRequest(w, r, "siteNo must be a positive integer")
		return
	}

	snap, err := h.service.GetSnapshot(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "station data is temporarily unavailable")
		return
	}

	var rec *station.Reconciled
	for _, m := range snap.Matched {
		if m.SiteNo == siteNo {
			rec = m
			break
		}
	}
	if rec == nil {
		response.NotFound(w, r, "no reconciled station with site number "+strconv.Itoa(siteNo))
		return
	}

	prices, err := pricing.DerivePrices(&rec.Station, h.policy)
	if err != nil {
		response.InternalError(w, r, "pricing schedule is misconfigured")
		return
	}

	diesel := prices.Diesel.String()
	discount := prices.PetrolDiscount.String()
	resp := models.MemberPricesResponse{
		SiteNo:         rec.SiteNo,
		Name:           rec.Name,
		Brand:          rec.Brand,
		IsSupermarket:  prices.IsSupermarket,
		Diesel:         &diesel,
		PetrolDiscount: &discount,
		PumpPetrol:     rec.PetrolPrice,
		PumpDiesel:     rec.DieselPrice,
	}
	if prices.Petrol != nil {
		petrol := prices.Petrol.String()
		resp.Petrol = &petrol
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	response.JSON(w, r, http.StatusOK, resp)
}

// Averages handles GET /v1/averages - national average pump prices.
//
// Query parameters:
//   - matchedOnly: "true" restricts the mean to live stations that
//     reconciled against the directory
func (h *StationHandler) Averages(w http.ResponseWriter, r *http.Request) {
	matchedOnly := r.URL.Query().Get("matchedOnly") == "true"

	avg, err := h.service.Averages(r.Context(), matchedOnly)
	if err != nil {
		response.ServiceUnavailable(w, r, "station data is temporarily unavailable")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.AveragesResponse{
		Petrol:      avg.Petrol,
		Diesel:      avg.Diesel,
		MatchedOnly: matchedOnly,
	})
}

// parseReference reads lat/lon query parameters, falling back to the
// configured reference point. Both must be supplied together.
func (h *StationHandler) parseReference(w http.ResponseWriter, r *http.Request) (geo.Point, bool) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")

	if latStr == "" && lonStr == "" {
		return h.defaultRef, true
	}
	if latStr == "" || lonStr == "" {
		response.BadRequest(w, r, "lat and lon must be supplied together")
		return geo.Point{}, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		response.BadRequest(w, r, "lat must be a number")
		return geo.Point{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		response.BadRequest(w, r, "lon must be a number")
		return geo.Point{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		response.BadRequest(w, r, "lat/lon out of range")
		return geo.Point{}, false
	}

	return geo.Point{Lat: lat, Lon: lon}, true
}

func stationView(rec *station.Reconciled) models.StationView {
	v := models.StationView{
		ID:             rec.ID,
		SiteNo:         rec.SiteNo,
		Retailer:       rec.Retailer,
		Brand:          rec.Brand,
		Name:           rec.Name,
		Address:        rec.Address,
		Town:           rec.Town,
		Postcode:       rec.Postcode,
		Latitude:       rec.Lat,
		Longitude:      rec.Lon,
		PetrolPrice:    rec.PetrolPrice,
		DieselPrice:    rec.DieselPrice,
		SuperPrice:     rec.SuperPrice,
		HasLivePricing: rec.HasLivePricing,
		Hours24:        rec.Hours24,
		HGVAccess:      rec.HGVAccess,
		Bands:          rec.Bands,
		DistanceKm:     rec.DistanceKm,
		DistanceMiles:  rec.DistanceMiles(),
	}
	if !rec.LastUpdated.IsZero() {
		v.LastUpdated = rec.LastUpdated.Format(time.RFC3339)
	}
	return v
}

// unmatchedView renders a live station that found no directory site.
// It has no site number, so the siteNo field stays absent on the wire.
func unmatchedView(u *station.Unmatched) models.StationView {
	v := models.StationView{
		ID:             u.ID,
		Retailer:       u.Retailer,
		Brand:          u.Brand,
		Name:           u.Name,
		Address:        u.Address,
		Town:           u.Town,
		Postcode:       u.Postcode,
		Latitude:       u.Lat,
		Longitude:      u.Lon,
		PetrolPrice:    u.PetrolPrice,
		DieselPrice:    u.DieselPrice,
		SuperPrice:     u.SuperPrice,
		HasLivePricing: true,
		DistanceKm:     u.DistanceKm,
		DistanceMiles:  u.DistanceMiles(),
	}
	if !u.LastUpdated.IsZero() {
		v.LastUpdated = u.LastUpdated.Format(time.RFC3339)
	}
	return v
}
