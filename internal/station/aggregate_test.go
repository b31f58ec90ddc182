package station

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelscout/fuelscout/pkg/geo"
)

var fallback = Averages{Petrol: 1.452, Diesel: 1.534}

func priced(petrol, diesel *float64) *Station {
	return &Station{PetrolPrice: petrol, DieselPrice: diesel}
}

func f(v float64) *float64 { return &v }

func TestComputeAverages(t *testing.T) {
	t.Run("arithmetic mean per fuel", func(t *testing.T) {
		stations := []*Station{
			priced(f(1.40), f(1.50)),
			priced(f(1.44), f(1.54)),
		}
		avg := ComputeAverages(stations, fallback)
		assert.InDelta(t, 1.42, avg.Petrol, 1e-9)
		assert.InDelta(t, 1.52, avg.Diesel, 1e-9)
	})

	t.Run("nil prices excluded from the mean", func(t *testing.T) {
		stations := []*Station{
			priced(f(1.40), nil),
			priced(nil, f(1.54)),
		}
		avg := ComputeAverages(stations, fallback)
		assert.InDelta(t, 1.40, avg.Petrol, 1e-9)
		assert.InDelta(t, 1.54, avg.Diesel, 1e-9)
	})

	t.Run("component-wise fallback", func(t *testing.T) {
		stations := []*Station{priced(f(1.40), nil)}
		avg := ComputeAverages(stations, fallback)
		assert.InDelta(t, 1.40, avg.Petrol, 1e-9)
		assert.InDelta(t, fallback.Diesel, avg.Diesel, 1e-9)
	})

	t.Run("empty set takes full fallback", func(t *testing.T) {
		avg := ComputeAverages(nil, fallback)
		assert.Equal(t, fallback, avg)
	})
}

func TestAverages_Format(t *testing.T) {
	avg := Averages{Petrol: 1.4516666, Diesel: 1.5}
	assert.Equal(t, "1.452", avg.FormatPetrol())
	assert.Equal(t, "1.500", avg.FormatDiesel())
}

func TestLiveOnly(t *testing.T) {
	matched := []*Reconciled{
		{Station: Station{ID: "live-1"}, HasLivePricing: true},
		{Station: Station{ID: "synth-1"}, HasLivePricing: false},
		{Station: Station{ID: "live-2"}, HasLivePricing: true},
	}

	live := LiveOnly(matched)
	require.Len(t, live, 2)
	assert.Equal(t, "live-1", live[0].ID)
	assert.Equal(t, "live-2", live[1].ID)
}

func reconciledAt(id string, siteNo int, name, brand, postcode, town string, lat, lon float64) *Reconciled {
	return &Reconciled{
		Station: Station{
			ID:       id,
			Name:     name,
			Brand:    brand,
			Postcode: postcode,
			Town:     town,
			Lat:      lat,
			Lon:      lon,
		},
		SiteNo: siteNo,
	}
}

func TestFilterAndSort(t *testing.T) {
	slough := geo.Point{Lat: 51.5105, Lon: -0.5950}
	set := []*Reconciled{
		reconciledAt("far", 301, "LEEDS NORTH", "SHELL", "LS1 1AA", "LEEDS", 53.80, -1.55),
		reconciledAt("near", 101, "SLOUGH CENTRAL", "BP", "SL1 1AA", "SLOUGH", 51.51, -0.59),
		reconciledAt("mid", 201, "READING WEST", "ESSO", "RG1 1AA", "READING", 51.45, -0.97),
	}

	t.Run("empty query sorts everything by distance", func(t *testing.T) {
		got := FilterAndSort(set, "", slough)
		require.Len(t, got, 3)
		assert.Equal(t, "near", got[0].ID)
		assert.Equal(t, "mid", got[1].ID)
		assert.Equal(t, "far", got[2].ID)
		assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
		assert.Less(t, got[1].DistanceKm, got[2].DistanceKm)
	})

	t.Run("query matches name", func(t *testing.T) {
		got := FilterAndSort(set, "reading", slough)
		require.Len(t, got, 1)
		assert.Equal(t, "mid", got[0].ID)
	})

	t.Run("query matches brand", func(t *testing.T) {
		got := FilterAndSort(set, "shell", slough)
		require.Len(t, got, 1)
		assert.Equal(t, "far", got[0].ID)
	})

	t.Run("query matches postcode", func(t *testing.T) {
		got := FilterAndSort(set, "sl1", slough)
		require.Len(t, got, 1)
		assert.Equal(t, "near", got[0].ID)
	})

	t.Run("query matches site number", func(t *testing.T) {
		got := FilterAndSort(set, "201", slough)
		require.Len(t, got, 1)
		assert.Equal(t, "mid", got[0].ID)
	})

	t.Run("no matches yields empty list", func(t *testing.T) {
		got := FilterAndSort(set, "zzz", slough)
		assert.Empty(t, got)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		_ = FilterAndSort(set, "", geo.Point{Lat: 55, Lon: -3})
		for _, r := range set {
			assert.Zero(t, r.DistanceKm)
		}
	})

	t.Run("distance in miles rounds to one decimal", func(t *testing.T) {
		got := FilterAndSort(set, "reading", slough)
		require.Len(t, got, 1)
		miles := got[0].DistanceMiles()
		assert.InDelta(t, geo.KmToMiles(got[0].DistanceKm), miles, 1e-9)
		assert.Equal(t, miles, float64(int(miles*10+0.5))/10)
	})
}

func TestFilterUnmatched(t *testing.T) {
	slough := geo.Point{Lat: 51.5105, Lon: -0.5950}
	live := []*Station{
		{ID: "a", Brand: "SHELL", Name: "LEEDS NORTH", Postcode: "LS1 1AA", Town: "LEEDS", Lat: 53.80, Lon: -1.55},
		{ID: "b", Brand: "BP", Name: "SLOUGH CENTRAL", Postcode: "SL1 1AA", Town: "SLOUGH", Lat: 51.51, Lon: -0.59},
	}

	t.Run("sorts by distance", func(t *testing.T) {
		got := FilterUnmatched(live, "", slough)
		require.Len(t, got, 2)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "a", got[1].ID)
		assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
	})

	t.Run("query runs over the text fields", func(t *testing.T) {
		got := FilterUnmatched(live, "leeds", slough)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)
	})

	t.Run("no site number to search", func(t *testing.T) {
		assert.Empty(t, FilterUnmatched(live, "101", slough))
	})

	t.Run("distance in miles rounds to one decimal", func(t *testing.T) {
		got := FilterUnmatched(live, "slough", slough)
		require.Len(t, got, 1)
		assert.InDelta(t, geo.KmToMiles(got[0].DistanceKm), got[0].DistanceMiles(), 1e-9)
	})
}
