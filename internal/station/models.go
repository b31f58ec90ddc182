// Package station defines the canonical station model shared by the feed
// normalizer, the directory ingestor, and the matching engine, together
// with the aggregation helpers that produce view-ready station lists.
package station

import (
	"strings"
	"time"
	"unicode"

	"github.com/fuelscout/fuelscout/pkg/geo"
)

// Station is the canonical representation of one live forecourt record
// after normalization. Every retailer feed, whatever its wire schema,
// reduces to this shape.
type Station struct {
	// ID is globally unique, derived from the retailer name plus the
	// source record's own identifier (or its positional index when the
	// source carries none).
	ID string

	Retailer string
	Brand    string
	Name     string
	Address  string
	Postcode string
	Town     string

	// Lat/Lon default to 0 when absent or unparsable. Zero is the valid
	// sentinel for "location unknown", not an error.
	Lat float64
	Lon float64

	// Pump prices in pounds per litre. Nil means the source carried no
	// price for that fuel.
	PetrolPrice *float64
	DieselPrice *float64
	SuperPrice  *float64

	LastUpdated time.Time
	IsOpen      bool
}

// HasAnyPrice reports whether at least one fuel price is known. A station
// with no price data carries no value downstream and is discarded by the
// normalizer.
func (s *Station) HasAnyPrice() bool {
	return s.PetrolPrice != nil || s.DieselPrice != nil || s.SuperPrice != nil
}

// Site is one entry of the authoritative partner-site directory. Loaded
// once per session and treated as read-only reference data for the
// duration of a matching pass.
type Site struct {
	SiteNo    int
	AltSiteNo int

	Lat float64
	Lon float64

	Name     string
	Street   string
	Town     string
	Postcode string
	Brand    string

	Hours24   bool
	HGVAccess bool
	Petrol    bool
	Diesel    bool

	// Bands is an opaque tariff-band label carried through untouched.
	Bands string
}

// Reconciled is a live station merged with its authoritative directory
// site, or a synthetic record built purely from a directory site that
// matched no live feed. Every Reconciled carries a directory site number.
type Reconciled struct {
	Station

	SiteNo int

	// HasLivePricing is true when the price fields came from a live feed,
	// false when they were backfilled with national averages.
	HasLivePricing bool

	Hours24   bool
	HGVAccess bool
	Bands     string

	// DistanceKm is computed fresh on each FilterAndSort pass from the
	// caller's reference location. It is not part of the stored snapshot.
	DistanceKm float64
}

// DistanceMiles returns the display distance in miles, rounded to one
// decimal place.
func (r *Reconciled) DistanceMiles() float64 {
	return geo.KmToMiles(r.DistanceKm)
}

// Unmatched is a live station shown without a directory match, for the
// fallback display. Unlike Reconciled it carries no site number and no
// directory attributes; its prices are always live by construction.
type Unmatched struct {
	Station

	// DistanceKm is computed fresh on each FilterUnmatched pass, like
	// its Reconciled counterpart.
	DistanceKm float64
}

// DistanceMiles returns the display distance in miles, rounded to one
// decimal place.
func (u *Unmatched) DistanceMiles() float64 {
	return geo.KmToMiles(u.DistanceKm)
}

// NormalizeKey upper-cases, trims, and strips every non-alphanumeric
// character. It is the shared key normalization for postcode, brand, name
// and town comparisons, so "Sainsbury's" and "SAINSBURYS " collide as
// intended.
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
