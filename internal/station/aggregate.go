package station

import (
	"sort"
	"strconv"
	"strings"

	"github.com/fuelscout/fuelscout/pkg/geo"
)

// Averages holds national average pump prices in pounds per litre. They
// feed the matching engine's synthesis of unmatched directory sites and
// the member-facing averages display.
type Averages struct {
	Petrol float64
	Diesel float64
}

// FormatPetrol renders the petrol average to three decimal places.
func (a Averages) FormatPetrol() string {
	return strconv.FormatFloat(a.Petrol, 'f', 3, 64)
}

// FormatDiesel renders the diesel average to three decimal places.
func (a Averages) FormatDiesel() string {
	return strconv.FormatFloat(a.Diesel, 'f', 3, 64)
}

// ComputeAverages returns the arithmetic mean of all non-nil petrol and
// diesel prices across the given set. Either component falls back to the
// supplied default when the set carries no prices for it.
func ComputeAverages(stations []*Station, fallback Averages) Averages {
	var petrolSum, dieselSum float64
	var petrolN, dieselN int

	for _, s := range stations {
		if s.PetrolPrice != nil {
			petrolSum += *s.PetrolPrice
			petrolN++
		}
		if s.DieselPrice != nil {
			dieselSum += *s.DieselPrice
			dieselN++
		}
	}

	avg := fallback
	if petrolN > 0 {
		avg.Petrol = petrolSum / float64(petrolN)
	}
	if dieselN > 0 {
		avg.Diesel = dieselSum / float64(dieselN)
	}
	return avg
}

// LiveOnly returns the live stations carried inside the matched set,
// for matched-only average computation.
func LiveOnly(matched []*Reconciled) []*Station {
	out := make([]*Station, 0, len(matched))
	for _, r := range matched {
		if r.HasLivePricing {
			st := r.Station
			out = append(out, &st)
		}
	}
	return out
}

// FilterAndSort applies the search query to the station set, computes a
// fresh display distance for every surviving station from the reference
// location, and returns the result in ascending distance order. The input
// slice is never mutated; callers may share a snapshot across requests.
func FilterAndSort(stations []*Reconciled, query string, ref geo.Point) []*Reconciled {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]*Reconciled, 0, len(stations))
	for _, r := range stations {
		if q != "" && !matchesQuery(r, q) {
			continue
		}
		c := *r
		c.DistanceKm = geo.DistanceKm(ref.Lat, ref.Lon, c.Lat, c.Lon)
		out = append(out, &c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// FilterUnmatched is the fallback-display counterpart of FilterAndSort
// for live stations that claimed no directory site. The query runs over
// the same text fields; there is no site number to search or to carry.
func FilterUnmatched(stations []*Station, query string, ref geo.Point) []*Unmatched {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]*Unmatched, 0, len(stations))
	for _, st := range stations {
		if q != "" && !textMatches(st, q) {
			continue
		}
		out = append(out, &Unmatched{
			Station:    *st,
			DistanceKm: geo.DistanceKm(ref.Lat, ref.Lon, st.Lat, st.Lon),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// matchesQuery reports whether the lower-cased query is a substring of any
// searchable text field, or of the stringified directory site number.
func matchesQuery(r *Reconciled, q string) bool {
	if textMatches(&r.Station, q) {
		return true
	}
	return strings.Contains(strconv.Itoa(r.SiteNo), q)
}

func textMatches(st *Station, q string) bool {
	for _, field := range []string{st.Name, st.Brand, st.Address, st.Postcode, st.Town} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
