package models

import "time"

// StationView is the API representation of a reconciled station.
type StationView struct {
	ID             string   `json:"id"`
	SiteNo         int      `json:"siteNo,omitempty"`
	Retailer       string   `json:"retailer,omitempty"`
	Brand          string   `json:"brand,omitempty"`
	Name           string   `json:"name"`
	Address        string   `json:"address,omitempty"`
	Town           string   `json:"town,omitempty"`
	Postcode       string   `json:"postcode,omitempty"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	PetrolPrice    *float64 `json:"petrolPrice,omitempty"`
	DieselPrice    *float64 `json:"dieselPrice,omitempty"`
	SuperPrice     *float64 `json:"superPrice,omitempty"`
	HasLivePricing bool     `json:"hasLivePricing"`
	Hours24        bool     `json:"hours24,omitempty"`
	HGVAccess      bool     `json:"hgvAccess,omitempty"`
	Bands          string   `json:"bands,omitempty"`
	DistanceKm     float64  `json:"distanceKm"`
	DistanceMiles  float64  `json:"distanceMiles"`
	LastUpdated    string   `json:"lastUpdated,omitempty"`
}

// StationListResponse is the response for the station listing endpoint.
type StationListResponse struct {
	Stations  []StationView `json:"stations"`
	Count     int           `json:"count"`
	LiveCount int           `json:"liveCount"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// AveragesResponse is the response for the national averages endpoint.
type AveragesResponse struct {
	Petrol      float64 `json:"petrol"`
	Diesel      float64 `json:"diesel"`
	MatchedOnly bool    `json:"matchedOnly"`
}

// MemberPricesResponse is the response for the per-site derived pricing endpoint.
type MemberPricesResponse struct {
	SiteNo         int      `json:"siteNo"`
	Name           string   `json:"name"`
	Brand          string   `json:"brand,omitempty"`
	IsSupermarket  bool     `json:"isSupermarket"`
	Diesel         *string  `json:"diesel,omitempty"`
	Petrol         *string  `json:"petrol,omitempty"`
	PetrolDiscount *string  `json:"petrolDiscount,omitempty"`
	PumpPetrol     *float64 `json:"pumpPetrol,omitempty"`
	PumpDiesel     *float64 `json:"pumpDiesel,omitempty"`
}
