package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

const (
	// Earth's radius in meters
	earthRadius = 6371000.0
)

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new instance of geographic utilities
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates the great-circle distance between two points
// using the Haversine formula, returning distance in meters
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if err := validatePoint(p1); err != nil {
		return 0, fmt.Errorf("invalid first point: %w", err)
	}
	if err := validatePoint(p2); err != nil {
		return 0, fmt.Errorf("invalid second point: %w", err)
	}

	lat1 := toRadians(p1.Latitude)
	lat2 := toRadians(p2.Latitude)
	deltaLat := toRadians(p2.Latitude - p1.Latitude)
	deltaLng := toRadians(p2.Longitude - p1.Longitude)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c, nil
}

// DistanceFromCoords is a convenience wrapper around PointToPoint
func (g *geoUtils) DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error) {
	return g.PointToPoint(
		Point{Latitude: lat1, Longitude: lon1},
		Point{Latitude: lat2, Longitude: lon2},
	)
}

// PointToPolyline calculates the minimum distance from a point to any
// segment of the polyline, returning distance in meters
func (g *geoUtils) PointToPolyline(point Point, pl Polyline) (float64, error) {
	if err := validatePoint(point); err != nil {
		return 0, fmt.Errorf("invalid point: %w", err)
	}

	points := pl.Points
	if len(points) == 0 && pl.EncodedPolyline != "" {
		decoded, err := g.DecodePolyline(pl.EncodedPolyline)
		if err != nil {
			return 0, fmt.Errorf("failed to decode polyline: %w", err)
		}
		points = decoded
	}

	if len(points) == 0 {
		return 0, fmt.Errorf("polyline has no points")
	}

	if len(points) == 1 {
		return g.PointToPoint(point, points[0])
	}

	minDistance := math.MaxFloat64
	for i := 0; i < len(points)-1; i++ {
		distance, err := g.pointToSegment(point, points[i], points[i+1])
		if err != nil {
			return 0, fmt.Errorf("segment %d: %w", i, err)
		}
		if distance < minDistance {
			minDistance = distance
		}
	}

	return minDistance, nil
}

// pointToSegment calculates the distance from a point to a line segment
// by projecting onto the segment in an equirectangular approximation.
// Accurate enough at route-matching scale (hundreds of meters).
func (g *geoUtils) pointToSegment(p, a, b Point) (float64, error) {
	// Scale longitude by cos(lat) so meters east and meters north are comparable
	latScale := math.Cos(toRadians((a.Latitude + b.Latitude) / 2))

	ax := a.Longitude * latScale
	ay := a.Latitude
	bx := b.Longitude * latScale
	by := b.Latitude
	px := p.Longitude * latScale
	py := p.Latitude

	dx := bx - ax
	dy := by - ay

	// Degenerate segment collapses to a point
	if dx == 0 && dy == 0 {
		return g.PointToPoint(p, a)
	}

	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	nearest := Point{
		Latitude:  a.Latitude + t*(b.Latitude-a.Latitude),
		Longitude: a.Longitude + t*(b.Longitude-a.Longitude),
	}

	return g.PointToPoint(p, nearest)
}

// DecodePolyline decodes a Google-format encoded polyline string
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty polyline string")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	points := make([]Point, 0, len(coords))
	for _, coord := range coords {
		points = append(points, Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		})
	}

	return points, nil
}

// Contains reports whether the point falls inside the bounding box
func (b BoundingBox) Contains(p Point) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

// Center returns the midpoint of the bounding box
func (b BoundingBox) Center() Point {
	return Point{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLng + b.MaxLng) / 2,
	}
}

func validatePoint(p Point) error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", p.Longitude)
	}
	return nil
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
