package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fuelscout/fuelscout/pkg/geo"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
		tolerance              float64
	}{
		{
			name: "same point",
			lat1: 51.5105, lon1: -0.5950,
			lat2: 51.5105, lon2: -0.5950,
			expected:  0,
			tolerance: 0.0001,
		},
		{
			name: "London to Birmingham",
			lat1: 51.5074, lon1: -0.1278,
			lat2: 52.4862, lon2: -1.8904,
			expected:  163.5,
			tolerance: 2.0,
		},
		{
			name: "Slough to Reading",
			lat1: 51.5105, lon1: -0.5950,
			lat2: 51.4543, lon2: -0.9781,
			expected:  27.3,
			tolerance: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := geo.DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expected, d, tt.tolerance)
		})
	}
}

func TestDistanceKm_NaNPropagates(t *testing.T) {
	d := geo.DistanceKm(math.NaN(), 0, 51.5, -0.6)
	assert.True(t, math.IsNaN(d))
}

func TestKmToMiles(t *testing.T) {
	tests := []struct {
		km       float64
		expected float64
	}{
		{0, 0},
		{1, 0.6},
		{10, 6.2},
		{100, 62.1},
		{27.35, 17.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, geo.KmToMiles(tt.km))
	}
}

func TestPlanarProximity(t *testing.T) {
	// 3-4-5 triangle in degree-space.
	assert.InDelta(t, 0.005, geo.PlanarProximity(51.503, -0.604, 51.5, -0.6), 1e-9)

	// Symmetric.
	assert.Equal(t,
		geo.PlanarProximity(51.5, -0.6, 52.0, -1.0),
		geo.PlanarProximity(52.0, -1.0, 51.5, -0.6))
}

func TestPointIsZero(t *testing.T) {
	assert.True(t, geo.Point{}.IsZero())
	assert.False(t, geo.Point{Lat: 51.5}.IsZero())
	assert.False(t, geo.Point{Lon: -0.6}.IsZero())
}
