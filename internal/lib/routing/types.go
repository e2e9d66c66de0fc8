package routing

import (
	"github.com/HairyGair/go-barry/internal/lib/geo"
)

// Config controls the matching thresholds
type Config struct {
	// StopRadiusMeters is the stop-proximity search radius
	StopRadiusMeters float64

	// ShapeRadiusFactor expands the radius for the shape-proximity
	// search when no stops are in range
	ShapeRadiusFactor float64

	// Corridors are operator-supplied road geometries matched by
	// proximity in addition to the stop network
	Corridors []Corridor
}

// Corridor is a named road geometry in Google encoded-polyline form,
// for trunk roads the network runs alongside rather than stops on.
// An incident within RadiusMeters of the decoded shape affects the
// listed routes.
type Corridor struct {
	Name         string   `json:"name"`
	EncodedShape string   `json:"encodedShape"`
	RadiusMeters float64  `json:"radiusMeters"`
	Routes       []string `json:"routes"`
}

// DefaultConfig returns the standard matching thresholds
func DefaultConfig() Config {
	return Config{
		StopRadiusMeters:  250,
		ShapeRadiusFactor: 1.5,
	}
}

// Zone is a named bounding box with a short default route list, used
// only when every other matching technique comes up empty
type Zone struct {
	Name   string          `json:"name"`
	Box    geo.BoundingBox `json:"box"`
	Routes []string        `json:"routes"`
}

// Dictionaries hold the text-matching lookups: road names and area
// names to the routes that serve them
type Dictionaries struct {
	RoadRoutes map[string][]string `json:"roadRoutes"`
	AreaRoutes map[string][]string `json:"areaRoutes"`
}
