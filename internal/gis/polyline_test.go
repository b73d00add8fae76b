package gis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebudget-telemetry/internal/location"
)

func TestDecodePolyline(t *testing.T) {
	// Reference encoding of (38.5,-120.2) (40.7,-120.95) (43.252,-126.453).
	route, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, route, 3)

	want := []struct{ lat, lon float64 }{
		{38.5, -120.2},
		{40.7, -120.95},
		{43.252, -126.453},
	}
	for i, w := range want {
		assert.InDelta(t, w.lat, route[i].Latitude, 1e-9)
		assert.InDelta(t, w.lon, route[i].Longitude, 1e-9)
	}
}

func TestDecodePolylineEmpty(t *testing.T) {
	route, err := DecodePolyline("")
	require.NoError(t, err)
	assert.Empty(t, route)
}

func TestDecodePolylineTruncated(t *testing.T) {
	// A continuation chunk with nothing after it.
	_, err := DecodePolyline("_p~iF~ps|U_")
	assert.Error(t, err)
}

func TestDecodePolylineInvalidByte(t *testing.T) {
	_, err := DecodePolyline("\x1f")
	assert.Error(t, err)
}

func TestPolylineRoundTrip(t *testing.T) {
	original := location.RouteGeometry{
		{Latitude: 19.0760, Longitude: 72.8777},
		{Latitude: 19.0896, Longitude: 72.8656},
		{Latitude: 19.1136, Longitude: 72.8697},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 0, Longitude: 0},
	}

	decoded, err := DecodePolyline(EncodePolyline(original))
	require.NoError(t, err)
	require.Len(t, decoded, len(original))
	for i := range original {
		assert.InDelta(t, original[i].Latitude, decoded[i].Latitude, 1e-5)
		assert.InDelta(t, original[i].Longitude, decoded[i].Longitude, 1e-5)
	}
}

func TestHaversine(t *testing.T) {
	mumbai := location.Position{Latitude: 19.0760, Longitude: 72.8777}
	pune := location.Position{Latitude: 18.5204, Longitude: 73.8567}

	d := Haversine(mumbai, pune)
	// Roughly 120 km.
	assert.InDelta(t, 120000, d, 5000)

	assert.Zero(t, Haversine(mumbai, mumbai))
}

func TestIsPointNearRoute(t *testing.T) {
	route := location.RouteGeometry{
		{Latitude: 19.0000, Longitude: 72.8000},
		{Latitude: 19.0100, Longitude: 72.8000},
	}

	on := location.Position{Latitude: 19.0050, Longitude: 72.8000}
	assert.True(t, IsPointNearRoute(on, route, 30))

	// ~0.001 deg of longitude is ~105 m at this latitude.
	off := location.Position{Latitude: 19.0050, Longitude: 72.8010}
	assert.False(t, IsPointNearRoute(off, route, 30))
	assert.True(t, IsPointNearRoute(off, route, 200))

	assert.False(t, IsPointNearRoute(on, nil, 30))
	assert.True(t, IsPointNearRoute(on, route[:1], math.MaxFloat64))
}
