package routing

import (
	"sort"
	"strings"

	"github.com/HairyGair/go-barry/internal/gtfs"
	"github.com/HairyGair/go-barry/internal/lib/geo"
)

// Matcher maps an alert's location to the routes it affects. Built
// once over the reference index and safe for concurrent use, all its
// state is read-only after construction.
type Matcher struct {
	geoUtils    geo.GeoUtils
	cfg         Config
	stops       []gtfs.Stop
	shapes      []routeShape
	corridors   []corridorShape
	dict        Dictionaries
	zones       []Zone
	knownRoutes map[string]struct{}
}

type routeShape struct {
	routeName string
	polyline  geo.Polyline
}

type corridorShape struct {
	name     string
	polyline geo.Polyline
	radius   float64
	routes   []string
}

// NewMatcher builds a matcher over a loaded reference index
func NewMatcher(index *gtfs.Index, cfg Config, dict Dictionaries, zones []Zone) *Matcher {
	if cfg.StopRadiusMeters <= 0 {
		cfg.StopRadiusMeters = DefaultConfig().StopRadiusMeters
	}
	if cfg.ShapeRadiusFactor <= 0 {
		cfg.ShapeRadiusFactor = DefaultConfig().ShapeRadiusFactor
	}

	shapes := make([]routeShape, 0)
	for _, rs := range index.RouteShapes() {
		shapes = append(shapes, routeShape{
			routeName: rs.RouteName,
			polyline:  geo.Polyline{Points: rs.Points},
		})
	}

	corridors := make([]corridorShape, 0, len(cfg.Corridors))
	for _, c := range cfg.Corridors {
		radius := c.RadiusMeters
		if radius <= 0 {
			radius = cfg.StopRadiusMeters
		}
		corridors = append(corridors, corridorShape{
			name:     c.Name,
			polyline: geo.Polyline{EncodedPolyline: c.EncodedShape},
			radius:   radius,
			routes:   c.Routes,
		})
	}

	known := make(map[string]struct{})
	for _, name := range index.RouteNames() {
		known[strings.ToUpper(name)] = struct{}{}
	}

	return &Matcher{
		geoUtils:    geo.NewGeoUtils(),
		cfg:         cfg,
		stops:       index.Stops(),
		shapes:      shapes,
		corridors:   corridors,
		dict:        dict,
		zones:       zones,
		knownRoutes: known,
	}
}

// Match returns the routes affected by a disruption at the given
// coordinate and/or described by the given text. Never returns nil,
// never errors; an empty result means no match. Output is sorted and
// duplicate-free, and identical inputs always produce identical output.
func (m *Matcher) Match(pt *geo.Point, text string) []string {
	matched := make(map[string]struct{})

	if pt != nil {
		m.matchByCoordinate(*pt, matched)
		m.matchCorridors(*pt, matched)
	}

	m.matchByText(text, matched)

	// Zone fallback only when everything else came up empty
	if len(matched) == 0 && pt != nil {
		for _, zone := range m.zones {
			if zone.Box.Contains(*pt) {
				for _, route := range zone.Routes {
					matched[route] = struct{}{}
				}
			}
		}
	}

	routes := make([]string, 0, len(matched))
	for route := range matched {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// matchByCoordinate runs stop proximity, then shape proximity, then a
// doubled-radius stop retry, accumulating into matched
func (m *Matcher) matchByCoordinate(pt geo.Point, matched map[string]struct{}) {
	if m.unionStopsWithin(pt, m.cfg.StopRadiusMeters, matched) {
		return
	}
	if m.unionShapesWithin(pt, m.cfg.StopRadiusMeters*m.cfg.ShapeRadiusFactor, matched) {
		return
	}
	m.unionStopsWithin(pt, m.cfg.StopRadiusMeters*2, matched)
}

// matchCorridors unions the routes of every configured corridor whose
// decoded shape passes within its radius of the point
func (m *Matcher) matchCorridors(pt geo.Point, matched map[string]struct{}) {
	for _, corridor := range m.corridors {
		distance, err := m.geoUtils.PointToPolyline(pt, corridor.polyline)
		if err != nil || distance > corridor.radius {
			continue
		}
		for _, route := range corridor.routes {
			matched[route] = struct{}{}
		}
	}
}

func (m *Matcher) unionStopsWithin(pt geo.Point, radius float64, matched map[string]struct{}) bool {
	hit := false
	for _, stop := range m.stops {
		distance, err := m.geoUtils.PointToPoint(pt, stop.Location)
		if err != nil || distance > radius {
			continue
		}
		for _, route := range stop.Routes {
			matched[route] = struct{}{}
		}
		hit = true
	}
	return hit
}

func (m *Matcher) unionShapesWithin(pt geo.Point, radius float64, matched map[string]struct{}) bool {
	hit := false
	for _, shape := range m.shapes {
		distance, err := m.geoUtils.PointToPolyline(pt, shape.polyline)
		if err != nil || distance > radius {
			continue
		}
		matched[shape.routeName] = struct{}{}
		hit = true
	}
	return hit
}

// matchByText tokenizes the text against the road-name, area-name and
// route-keyword dictionaries
func (m *Matcher) matchByText(text string, matched map[string]struct{}) {
	if text == "" {
		return
	}

	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	for _, token := range tokens {
		if routes, ok := m.dict.RoadRoutes[token]; ok {
			for _, route := range routes {
				matched[route] = struct{}{}
			}
		}
		// Tokens that name a route directly, "21" or "X85"
		if _, ok := m.knownRoutes[strings.ToUpper(token)]; ok {
			matched[strings.ToUpper(token)] = struct{}{}
		}
	}

	for area, routes := range m.dict.AreaRoutes {
		if strings.Contains(lower, area) {
			for _, route := range routes {
				matched[route] = struct{}{}
			}
		}
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		}
		return true
	})
}
