package gtfs

import (
	"sort"

	"github.com/HairyGair/go-barry/internal/lib/geo"
)

// Index stores GTFS static data in memory for fast lookups. It is
// built once at startup and read-only afterwards.
type Index struct {
	routeShortNames map[string]string              // route_id -> short_name
	tripToRoute     map[string]string              // trip_id -> route_id
	tripShapeID     map[string]string              // trip_id -> shape_id
	stopNames       map[string]string              // stop_id -> name
	stopCoord       map[string]geo.Point           // stop_id -> location
	stopRoutes      map[string]map[string]struct{} // stop_id -> route short names
	shapePoints     map[string][]geo.Point         // shape_id -> ordered points
	routeShapes     map[string][]string            // route short name -> shape_ids
}

func newIndex() *Index {
	return &Index{
		routeShortNames: map[string]string{},
		tripToRoute:     map[string]string{},
		tripShapeID:     map[string]string{},
		stopNames:       map[string]string{},
		stopCoord:       map[string]geo.Point{},
		stopRoutes:      map[string]map[string]struct{}{},
		shapePoints:     map[string][]geo.Point{},
		routeShapes:     map[string][]string{},
	}
}

// Stops returns all stops with their serving routes, sorted by stop ID
func (g *Index) Stops() []Stop {
	stops := make([]Stop, 0, len(g.stopCoord))
	for stopID, coord := range g.stopCoord {
		stop := Stop{
			ID:       stopID,
			Name:     g.stopNames[stopID],
			Location: coord,
			Routes:   g.RoutesForStop(stopID),
		}
		stops = append(stops, stop)
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	return stops
}

// RoutesForStop returns the sorted route short names serving a stop
func (g *Index) RoutesForStop(stopID string) []string {
	set, ok := g.stopRoutes[stopID]
	if !ok {
		return nil
	}
	routes := make([]string, 0, len(set))
	for route := range set {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// RouteShapes returns one down-sampled geometry per route short name.
// Routes with multiple shape variants get the longest variant, which
// covers the most road.
func (g *Index) RouteShapes() []RouteShape {
	shapes := make([]RouteShape, 0, len(g.routeShapes))
	for routeName, shapeIDs := range g.routeShapes {
		var best []geo.Point
		for _, shapeID := range shapeIDs {
			if pts := g.shapePoints[shapeID]; len(pts) > len(best) {
				best = pts
			}
		}
		if len(best) == 0 {
			continue
		}
		shapes = append(shapes, RouteShape{RouteName: routeName, Points: downsample(best, maxShapePoints)})
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].RouteName < shapes[j].RouteName })
	return shapes
}

// RouteNames returns all route short names, sorted and duplicate-free
func (g *Index) RouteNames() []string {
	seen := make(map[string]struct{}, len(g.routeShortNames))
	names := make([]string, 0, len(g.routeShortNames))
	for _, name := range g.routeShortNames {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopCount reports how many stops are indexed
func (g *Index) StopCount() int { return len(g.stopCoord) }

// RouteCount reports how many distinct route short names are indexed
func (g *Index) RouteCount() int { return len(g.RouteNames()) }

// maxShapePoints bounds per-route geometry so the matcher's segment
// scan stays cheap
const maxShapePoints = 200

// downsample keeps at most max points, always retaining the endpoints
func downsample(pts []geo.Point, max int) []geo.Point {
	if len(pts) <= max {
		return pts
	}
	step := float64(len(pts)-1) / float64(max-1)
	out := make([]geo.Point, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, pts[int(float64(i)*step)])
	}
	out[len(out)-1] = pts[len(pts)-1]
	return out
}
