package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoUtils_PointToPoint(t *testing.T) {
	// Newcastle Monument to Sunderland city centre
	newcastle := Point{Latitude: 54.9783, Longitude: -1.6178}
	sunderland := Point{Latitude: 54.9069, Longitude: -1.3838}

	geoUtils := NewGeoUtils()

	distance, err := geoUtils.PointToPoint(newcastle, sunderland)
	require.NoError(t, err)

	// Great-circle distance Newcastle to Sunderland is about 16.9km
	assert.InDelta(t, 16900, distance, 300, "distance should be approximately 16.9km")

	// Same point yields zero distance
	distance, err = geoUtils.PointToPoint(newcastle, newcastle)
	require.NoError(t, err)
	assert.Equal(t, 0.0, distance)

	// Invalid coordinates rejected
	invalidPoint := Point{Latitude: 200, Longitude: -300}
	_, err = geoUtils.PointToPoint(newcastle, invalidPoint)
	assert.Error(t, err, "should return error for invalid coordinates")
}

func TestGeoUtils_DistanceFromCoords(t *testing.T) {
	geoUtils := NewGeoUtils()

	// Newcastle to Gateshead Interchange, roughly 3km across the Tyne
	distance, err := geoUtils.DistanceFromCoords(54.9783, -1.6178, 54.9526, -1.6033)
	require.NoError(t, err)
	assert.InDelta(t, 3000, distance, 150)
}

func TestGeoUtils_PointToPolyline(t *testing.T) {
	geoUtils := NewGeoUtils()

	// Simplified route geometry along the Tyne crossing
	route := Polyline{
		Points: []Point{
			{Latitude: 54.9783, Longitude: -1.6178}, // Newcastle Monument
			{Latitude: 54.9526, Longitude: -1.6033}, // Gateshead Interchange
		},
	}

	// A vertex of the polyline is at distance zero
	distance, err := geoUtils.PointToPolyline(route.Points[0], route)
	require.NoError(t, err)
	assert.InDelta(t, 0, distance, 1)

	// A point offset roughly 100m east of the midpoint of the segment
	offEast := Point{Latitude: 54.9655, Longitude: -1.60901}
	distance, err = geoUtils.PointToPolyline(offEast, route)
	require.NoError(t, err)
	assert.InDelta(t, 95, distance, 20, "offset point should be roughly 95m from the segment")

	// Empty polyline is an error
	_, err = geoUtils.PointToPolyline(offEast, Polyline{})
	assert.Error(t, err)
}

func TestGeoUtils_PointToPolyline_SinglePoint(t *testing.T) {
	geoUtils := NewGeoUtils()

	route := Polyline{Points: []Point{{Latitude: 54.9783, Longitude: -1.6178}}}
	testPoint := Point{Latitude: 54.9526, Longitude: -1.6033}

	distance, err := geoUtils.PointToPolyline(testPoint, route)
	require.NoError(t, err)
	assert.InDelta(t, 3000, distance, 150, "single-point polyline falls back to point distance")
}

func TestGeoUtils_DecodePolyline(t *testing.T) {
	geoUtils := NewGeoUtils()

	// Canonical encoded polyline example
	points, err := geoUtils.DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.InDelta(t, 38.5, points[0].Latitude, 0.001)
	assert.InDelta(t, -120.2, points[0].Longitude, 0.001)
	assert.InDelta(t, 40.7, points[1].Latitude, 0.001)
	assert.InDelta(t, -120.95, points[1].Longitude, 0.001)

	_, err = geoUtils.DecodePolyline("")
	assert.Error(t, err, "empty string should be rejected")
}

func TestBoundingBox_Contains(t *testing.T) {
	// Rough box around Tyne & Wear
	box := BoundingBox{MinLat: 54.80, MaxLat: 55.10, MinLng: -1.80, MaxLng: -1.30}

	assert.True(t, box.Contains(Point{Latitude: 54.9783, Longitude: -1.6178}), "Newcastle inside")
	assert.True(t, box.Contains(Point{Latitude: 54.9069, Longitude: -1.3838}), "Sunderland inside")
	assert.False(t, box.Contains(Point{Latitude: 54.5253, Longitude: -1.5549}), "Darlington outside")
	assert.False(t, box.Contains(Point{Latitude: 54.9783, Longitude: -2.0}), "west of box")
}

func TestBoundingBox_Center(t *testing.T) {
	box := BoundingBox{MinLat: 54.80, MaxLat: 55.00, MinLng: -1.80, MaxLng: -1.40}
	center := box.Center()
	assert.InDelta(t, 54.90, center.Latitude, 0.0001)
	assert.InDelta(t, -1.60, center.Longitude, 0.0001)
}
