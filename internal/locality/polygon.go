package locality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// edgeEpsilon is the tolerance, in degrees, within which a point counts as
// lying on a polygon edge.
const edgeEpsilon = 1e-9

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// Polygon is a GeoJSON polygon: the first ring is the outer shell, the rest are holes.
type Polygon struct {
	Rings [][]Point
	bbox  [4]float64 // minLon, minLat, maxLon, maxLat
}

// PolygonBoundary is an in-process BoundarySource built from GeoJSON. It is
// used to validate boundary files before import and as the boundary in tests.
type PolygonBoundary struct {
	polys []Polygon
}

// NewPolygonBoundary builds a boundary from polygons given as rings of points.
func NewPolygonBoundary(polys ...Polygon) *PolygonBoundary {
	out := make([]Polygon, 0, len(polys))
	for _, p := range polys {
		p.bbox = computeBBox(p)
		out = append(out, p)
	}
	return &PolygonBoundary{polys: out}
}

// Polygons returns the number of polygons making up the boundary.
func (b *PolygonBoundary) Polygons() int { return len(b.polys) }

func (b *PolygonBoundary) Covers(_ context.Context, lon, lat float64) (bool, error) {
	if b == nil || len(b.polys) == 0 {
		return false, ErrBoundaryUnavailable
	}
	pt := Point{Lon: lon, Lat: lat}
	for _, p := range b.polys {
		if coversPolygon(pt, p) {
			return true, nil
		}
	}
	return false, nil
}

// coversPolygon is inclusive: a point on any ring, holes included, is covered.
func coversPolygon(pt Point, p Polygon) bool {
	if len(p.Rings) == 0 || !inBBox(pt, p.bbox) {
		return false
	}
	for _, ring := range p.Rings {
		if onRing(pt, ring) {
			return true
		}
	}
	if !insideRing(pt, p.Rings[0]) {
		return false
	}
	for _, hole := range p.Rings[1:] {
		if insideRing(pt, hole) {
			return false
		}
	}
	return true
}

// insideRing is the even-odd ray casting test. Its answer for points exactly
// on an edge is unspecified; callers check onRing first.
func insideRing(pt Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > pt.Lat) != (yj > pt.Lat) &&
			pt.Lon < (xj-xi)*(pt.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func onRing(pt Point, ring []Point) bool {
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(pt, ring[j], ring[i]) {
			return true
		}
	}
	return false
}

func onSegment(pt, a, b Point) bool {
	cross := (b.Lon-a.Lon)*(pt.Lat-a.Lat) - (b.Lat-a.Lat)*(pt.Lon-a.Lon)
	length := math.Hypot(b.Lon-a.Lon, b.Lat-a.Lat)
	if length == 0 {
		return math.Abs(pt.Lon-a.Lon) <= edgeEpsilon && math.Abs(pt.Lat-a.Lat) <= edgeEpsilon
	}
	if math.Abs(cross)/length > edgeEpsilon {
		return false
	}
	return pt.Lon >= math.Min(a.Lon, b.Lon)-edgeEpsilon && pt.Lon <= math.Max(a.Lon, b.Lon)+edgeEpsilon &&
		pt.Lat >= math.Min(a.Lat, b.Lat)-edgeEpsilon && pt.Lat <= math.Max(a.Lat, b.Lat)+edgeEpsilon
}

func inBBox(pt Point, b [4]float64) bool {
	return pt.Lon >= b[0]-edgeEpsilon && pt.Lon <= b[2]+edgeEpsilon &&
		pt.Lat >= b[1]-edgeEpsilon && pt.Lat <= b[3]+edgeEpsilon
}

func computeBBox(p Polygon) [4]float64 {
	b := [4]float64{180, 90, -180, -90}
	for _, r := range p.Rings {
		for _, pt := range r {
			b[0] = math.Min(b[0], pt.Lon)
			b[1] = math.Min(b[1], pt.Lat)
			b[2] = math.Max(b[2], pt.Lon)
			b[3] = math.Max(b[3], pt.Lat)
		}
	}
	return b
}

type geoJSONGeometry struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometries  []geoJSONGeometry `json:"geometries"`
}

type geoJSONFeature struct {
	Type       string           `json:"type"`
	Geometry   *geoJSONGeometry `json:"geometry"`
	Properties map[string]any   `json:"properties"`
}

type geoJSONDocument struct {
	Type        string            `json:"type"`
	Features    []geoJSONFeature  `json:"features"`
	Geometry    *geoJSONGeometry  `json:"geometry"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometries  []geoJSONGeometry `json:"geometries"`
}

// LoadPolygonBoundaryFile reads a GeoJSON boundary from disk.
func LoadPolygonBoundaryFile(path string) (*PolygonBoundary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPolygonBoundary(f)
}

// LoadPolygonBoundary parses a GeoJSON FeatureCollection, Feature, Polygon,
// MultiPolygon or GeometryCollection. Every polygon found is part of the boundary.
func LoadPolygonBoundary(r io.Reader) (*PolygonBoundary, error) {
	var doc geoJSONDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	var polys []Polygon
	switch strings.ToLower(doc.Type) {
	case "featurecollection":
		for i, f := range doc.Features {
			if f.Geometry == nil {
				continue
			}
			ps, err := geometryPolygons(*f.Geometry)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			polys = append(polys, ps...)
		}
	case "feature":
		if doc.Geometry != nil {
			ps, err := geometryPolygons(*doc.Geometry)
			if err != nil {
				return nil, err
			}
			polys = ps
		}
	default:
		ps, err := geometryPolygons(geoJSONGeometry{Type: doc.Type, Coordinates: doc.Coordinates, Geometries: doc.Geometries})
		if err != nil {
			return nil, err
		}
		polys = ps
	}

	if len(polys) == 0 {
		return nil, errors.New("geojson contains no polygon")
	}
	return NewPolygonBoundary(polys...), nil
}

func geometryPolygons(g geoJSONGeometry) ([]Polygon, error) {
	switch strings.ToLower(g.Type) {
	case "polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		p, err := toPolygon(coords)
		if err != nil {
			return nil, err
		}
		return []Polygon{p}, nil
	case "multipolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		out := make([]Polygon, 0, len(coords))
		for _, part := range coords {
			p, err := toPolygon(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case "geometrycollection":
		var out []Polygon
		for _, sub := range g.Geometries {
			ps, err := geometryPolygons(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, ps...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
}

func toPolygon(rings [][][]float64) (Polygon, error) {
	var p Polygon
	for i, ring := range rings {
		if len(ring) < 4 {
			return Polygon{}, fmt.Errorf("ring %d has %d positions, need at least 4", i, len(ring))
		}
		pts := make([]Point, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return Polygon{}, fmt.Errorf("ring %d has a position with %d values", i, len(pos))
			}
			if err := validateCoordinate(pos[0], pos[1]); err != nil {
				return Polygon{}, err
			}
			pts = append(pts, Point{Lon: pos[0], Lat: pos[1]})
		}
		p.Rings = append(p.Rings, pts)
	}
	if len(p.Rings) == 0 {
		return Polygon{}, errors.New("polygon has no rings")
	}
	return p, nil
}

// MultiPolygonGeoJSON renders the boundary as a single GeoJSON MultiPolygon
// geometry, the form stored in locality.country_boundaries.
func (b *PolygonBoundary) MultiPolygonGeoJSON() ([]byte, error) {
	coords := make([][][][2]float64, 0, len(b.polys))
	for _, p := range b.polys {
		rings := make([][][2]float64, 0, len(p.Rings))
		for _, r := range p.Rings {
			ring := make([][2]float64, 0, len(r))
			for _, pt := range r {
				ring = append(ring, [2]float64{pt.Lon, pt.Lat})
			}
			rings = append(rings, ring)
		}
		coords = append(coords, rings)
	}
	return json.Marshal(struct {
		Type        string           `json:"type"`
		Coordinates [][][][2]float64 `json:"coordinates"`
	}{Type: "MultiPolygon", Coordinates: coords})
}
