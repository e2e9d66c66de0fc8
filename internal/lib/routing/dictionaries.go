package routing

import "github.com/HairyGair/go-barry/internal/lib/geo"

// DefaultDictionaries map North East road and area names to the
// routes that serve them. Overridable through configuration.
func DefaultDictionaries() Dictionaries {
	return Dictionaries{
		RoadRoutes: map[string][]string{
			"a1":    {"21", "25", "28", "X21"},
			"a19":   {"1", "2", "307", "309"},
			"a167":  {"21", "22", "X21"},
			"a184":  {"25", "28", "93", "94"},
			"a690":  {"20", "61", "78"},
			"a1058": {"1", "306", "308"},
			"a69":   {"X84", "X85"},
			"a183":  {"16", "E1", "E2"},
		},
		AreaRoutes: map[string][]string{
			"newcastle":  {"Q3", "21", "22", "X21"},
			"gateshead":  {"21", "25", "27", "28", "53", "54"},
			"sunderland": {"16", "20", "61", "E1"},
			"washington": {"X1", "85", "86"},
			"durham":     {"21", "X21", "50"},
			"consett":    {"X30", "X31", "X70", "X71"},
			"hexham":     {"X84", "X85"},
			"wallsend":   {"1", "306", "308"},
		},
	}
}

// DefaultZones cover the operating area as three coarse boxes
func DefaultZones() []Zone {
	return []Zone{
		{
			Name:   "Tyneside",
			Box:    geo.BoundingBox{MinLat: 54.90, MaxLat: 55.10, MinLng: -1.80, MaxLng: -1.40},
			Routes: []string{"21", "22", "Q3"},
		},
		{
			Name:   "Wearside",
			Box:    geo.BoundingBox{MinLat: 54.80, MaxLat: 54.95, MinLng: -1.52, MaxLng: -1.30},
			Routes: []string{"16", "20", "61"},
		},
		{
			Name:   "Durham",
			Box:    geo.BoundingBox{MinLat: 54.55, MaxLat: 54.85, MinLng: -1.90, MaxLng: -1.40},
			Routes: []string{"21", "X21", "50"},
		},
	}
}
