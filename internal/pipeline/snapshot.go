package pipeline

import (
	"sort"
	"time"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/join"
	"github.com/FatmaElik/risk-map/internal/spatial"
	"github.com/FatmaElik/risk-map/internal/textnorm"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
)

// Boundary layer kinds.
const (
	BoundaryDistricts = "districts"
	BoundaryProvinces = "provinces"
)

// Snapshot is one year's joined data. It is never modified after Build.
type Snapshot struct {
	ID        string
	Year      int
	BuiltAt   time.Time
	Features  *geojson.FeatureCollection
	Rows      []types.Row
	Districts *geojson.FeatureCollection
	Provinces *geojson.FeatureCollection
	Stats     join.Stats
	Fallback  types.BoundingBox
}

// Filter narrows a snapshot to a city and optionally some of its districts.
type Filter struct {
	City      string
	Districts []string
}

// Frame is the map framing for a filter.
type Frame struct {
	BBox types.BoundingBox `json:"-"`
	// Fallback is set when BBox is the territory fallback.
	Fallback bool                         `json:"fallback"`
	Cities   map[string]types.BoundingBox `json:"-"`
}

// Filter returns the features matching f.
func (s *Snapshot) Filter(f Filter) []*geojson.Feature {
	out := spatial.FilterByCity(s.Features.Features, f.City)
	return spatial.FilterByDistricts(out, f.Districts)
}

// Collection wraps the filtered features in a new collection.
func (s *Snapshot) Collection(f Filter) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, s.Filter(f)...)
	return fc
}

// Breaks classifies metric over the filtered features.
func (s *Snapshot) Breaks(metric string, f Filter, k int) classify.Result {
	return classify.Classify(metric, join.MetricValues(s.Filter(f), metric), k)
}

// Frame computes the bounding box of the filtered features. When they have
// none it tries the city's province outline, then the fallback region.
func (s *Snapshot) Frame(f Filter) Frame {
	frame := Frame{Cities: s.CityBounds()}

	if b, ok := spatial.BoundsOf(s.Filter(f)); ok {
		frame.BBox = b
		return frame
	}
	if f.City != "" {
		if b, ok := spatial.BoundsOf(spatial.FilterByCity(s.Provinces.Features, f.City)); ok {
			frame.BBox = b
			return frame
		}
	}
	frame.BBox = s.Fallback
	frame.Fallback = true
	return frame
}

// CityBounds returns the bounding box of each city's neighborhoods.
func (s *Snapshot) CityBounds() map[string]types.BoundingBox {
	byCity := map[string][]*geojson.Feature{}
	for _, f := range s.Features.Features {
		if city := join.CityOf(f); city != "" {
			byCity[city] = append(byCity[city], f)
		}
	}
	out := make(map[string]types.BoundingBox, len(byCity))
	for city, features := range byCity {
		if b, ok := spatial.BoundsOf(features); ok {
			out[city] = b
		}
	}
	return out
}

// Cities lists the cities present in the snapshot.
func (s *Snapshot) Cities() []string {
	seen := map[string]struct{}{}
	for _, f := range s.Features.Features {
		if city := join.CityOf(f); city != "" {
			seen[city] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Points returns scatter samples for the filtered features. A snapshot
// without geometry falls back to table rows, filtered by city.
func (s *Snapshot) Points(f Filter) []types.PointSample {
	fc := s.Collection(f)
	if len(s.Features.Features) > 0 {
		return join.ExtractPointSamples(nil, fc)
	}

	rows := s.Rows
	if f.City != "" {
		want := textnorm.Key(f.City)
		rows = make([]types.Row, 0, len(s.Rows))
		for _, r := range s.Rows {
			if textnorm.Key(join.NormalizeProperties(r).City) == want {
				rows = append(rows, r)
			}
		}
	}
	return join.ExtractPointSamples(rows, nil)
}

// AvailableDistricts lists the districts of city, or of every city when city
// is empty.
func (s *Snapshot) AvailableDistricts(city string) []string {
	return join.AvailableDistricts(spatial.FilterByCity(s.Features.Features, city))
}

// Boundary returns a boundary layer by kind, filtered by city.
func (s *Snapshot) Boundary(kind, city string) (*geojson.FeatureCollection, bool) {
	var src *geojson.FeatureCollection
	switch kind {
	case BoundaryDistricts:
		src = s.Districts
	case BoundaryProvinces:
		src = s.Provinces
	default:
		return nil, false
	}
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, spatial.FilterByCity(src.Features, city)...)
	return fc, true
}
