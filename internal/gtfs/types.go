package gtfs

import "github.com/HairyGair/go-barry/internal/lib/geo"

// Stop is a bus stop with the routes that serve it
type Stop struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
	Routes   []string  `json:"routes"`
}

// RouteShape is a down-sampled geometry for one route
type RouteShape struct {
	RouteName string      `json:"routeName"`
	Points    []geo.Point `json:"points"`
}
