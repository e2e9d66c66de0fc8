package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/HairyGair/go-barry/internal/lib/geo"
)

var gtfsFiles = map[string]struct{}{
	"routes.txt":     {},
	"trips.txt":      {},
	"stops.txt":      {},
	"stop_times.txt": {},
	"shapes.txt":     {},
}

// Load builds an Index from a local GTFS dataset, either a zip archive
// or a directory of .txt files
func Load(path string) (*Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("gtfs path: %w", err)
	}

	g := newIndex()
	loader := &loader{index: g, tripStops: map[string][]string{}}

	if info.IsDir() {
		err = loader.loadFromDir(path)
	} else {
		err = loader.loadFromZip(path)
	}
	if err != nil {
		return nil, err
	}

	loader.finalize()
	return g, nil
}

type loader struct {
	index     *Index
	tripStops map[string][]string // trip_id -> stop_ids (unordered)
}

func (l *loader) loadFromZip(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open gtfs zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := strings.ToLower(filepath.Base(f.Name))
		if _, ok := gtfsFiles[name]; !ok {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = l.consumeCSV(name, r)
		r.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", f.Name, err)
		}
	}
	return nil
}

func (l *loader) loadFromDir(dir string) error {
	for name := range gtfsFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("open %s: %w", name, err)
		}
		err = l.consumeCSV(name, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return nil
}

func (l *loader) consumeCSV(name string, r io.Reader) error {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) < 2 {
		return nil
	}

	head := rec[0]
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	g := l.index
	switch name {
	case "routes.txt":
		rID := idx("route_id")
		rSN := idx("route_short_name")
		for _, row := range rec[1:] {
			if id := field(row, rID); id != "" {
				g.routeShortNames[id] = field(row, rSN)
			}
		}

	case "trips.txt":
		rID := idx("route_id")
		tID := idx("trip_id")
		sh := idx("shape_id")
		for _, row := range rec[1:] {
			trip := field(row, tID)
			if trip == "" {
				continue
			}
			g.tripToRoute[trip] = field(row, rID)
			g.tripShapeID[trip] = field(row, sh)
		}

	case "stops.txt":
		sID := idx("stop_id")
		sN := idx("stop_name")
		sLat := idx("stop_lat")
		sLon := idx("stop_lon")
		for _, row := range rec[1:] {
			id := field(row, sID)
			if id == "" {
				continue
			}
			g.stopNames[id] = field(row, sN)
			lat, errLat := strconv.ParseFloat(field(row, sLat), 64)
			lon, errLon := strconv.ParseFloat(field(row, sLon), 64)
			if errLat == nil && errLon == nil {
				g.stopCoord[id] = geo.Point{Latitude: lat, Longitude: lon}
			}
		}

	case "stop_times.txt":
		tID := idx("trip_id")
		sID := idx("stop_id")
		for _, row := range rec[1:] {
			trip := field(row, tID)
			stop := field(row, sID)
			if trip == "" || stop == "" {
				continue
			}
			l.tripStops[trip] = append(l.tripStops[trip], stop)
		}

	case "shapes.txt":
		sh := idx("shape_id")
		latIdx := idx("shape_pt_lat")
		lonIdx := idx("shape_pt_lon")
		seqIdx := idx("shape_pt_sequence")
		type shapePt struct {
			pt  geo.Point
			seq int
		}
		tmp := map[string][]shapePt{}
		for _, row := range rec[1:] {
			shapeID := field(row, sh)
			if shapeID == "" {
				continue
			}
			lat, _ := strconv.ParseFloat(field(row, latIdx), 64)
			lon, _ := strconv.ParseFloat(field(row, lonIdx), 64)
			seq, _ := strconv.Atoi(field(row, seqIdx))
			tmp[shapeID] = append(tmp[shapeID], shapePt{
				pt:  geo.Point{Latitude: lat, Longitude: lon},
				seq: seq,
			})
		}
		for shapeID, arr := range tmp {
			sort.Slice(arr, func(i, j int) bool { return arr[i].seq < arr[j].seq })
			pts := make([]geo.Point, len(arr))
			for i, p := range arr {
				pts[i] = p.pt
			}
			g.shapePoints[shapeID] = pts
		}
	}
	return nil
}

// finalize derives stop-to-route and route-to-shape lookups once all
// files are ingested
func (l *loader) finalize() {
	g := l.index

	for trip, stops := range l.tripStops {
		routeName := g.routeShortNames[g.tripToRoute[trip]]
		if routeName == "" {
			continue
		}
		for _, stop := range stops {
			set, ok := g.stopRoutes[stop]
			if !ok {
				set = map[string]struct{}{}
				g.stopRoutes[stop] = set
			}
			set[routeName] = struct{}{}
		}
	}

	seen := map[string]map[string]struct{}{}
	for trip, shapeID := range g.tripShapeID {
		if shapeID == "" {
			continue
		}
		routeName := g.routeShortNames[g.tripToRoute[trip]]
		if routeName == "" {
			continue
		}
		set, ok := seen[routeName]
		if !ok {
			set = map[string]struct{}{}
			seen[routeName] = set
		}
		if _, dup := set[shapeID]; dup {
			continue
		}
		set[shapeID] = struct{}{}
		g.routeShapes[routeName] = append(g.routeShapes[routeName], shapeID)
	}
	for _, shapeIDs := range g.routeShapes {
		sort.Strings(shapeIDs)
	}
}
