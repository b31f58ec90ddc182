// Package geo provides the distance primitives used for station display
// ordering and for coarse proximity matching.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371

// kmPerMile converts kilometres to statute miles.
const kmPerMile = 0.621371

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// IsZero reports whether the point is the zero sentinel used for
// "location unknown".
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// DistanceKm calculates the spherical (haversine) distance between two
// points in kilometres. It is intended for user-facing distance display and
// sort ordering. NaN inputs propagate; callers are expected to have
// validated coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// KmToMiles converts kilometres to miles, rounded to one decimal place for
// display.
func KmToMiles(km float64) float64 {
	return math.Round(km*kmPerMile*10) / 10
}

// PlanarProximity calculates the Euclidean distance between two points in
// raw degree-space, with no latitude correction. It is deliberately
// imprecise: the matching engine uses it only as a cheap coarse proximity
// filter, gated by a brand cross-check before the result is trusted. Never
// use it for display distances.
func PlanarProximity(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := lat1 - lat2
	dLon := lon1 - lon2
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
