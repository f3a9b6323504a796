package spatial

import (
	"github.com/FatmaElik/risk-map/internal/textnorm"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// PointInPolygon reports whether p lies inside a polygon or multipolygon.
// Other geometry types never contain a point.
func PointInPolygon(p orb.Point, g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// FeatureAt returns the first feature whose geometry contains p.
func FeatureAt(p orb.Point, fc *geojson.FeatureCollection) (*geojson.Feature, bool) {
	if fc == nil {
		return nil, false
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if !f.Geometry.Bound().Contains(p) {
			continue
		}
		if PointInPolygon(p, f.Geometry) {
			return f, true
		}
	}
	return nil, false
}

// FilterByCity keeps features whose city (under any alias in
// types.CityAliases) matches city. An empty city keeps everything.
func FilterByCity(features []*geojson.Feature, city string) []*geojson.Feature {
	if city == "" {
		return features
	}
	want := textnorm.Key(city)
	out := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		if textnorm.Key(types.CityOf(f.Properties)) == want {
			out = append(out, f)
		}
	}
	return out
}

// FilterByDistricts keeps features whose district (under any alias in
// types.DistrictAliases) is one of districts. An empty list keeps everything.
func FilterByDistricts(features []*geojson.Feature, districts []string) []*geojson.Feature {
	if len(districts) == 0 {
		return features
	}
	want := make(map[string]struct{}, len(districts))
	for _, d := range districts {
		if k := textnorm.Key(d); k != "" {
			want[k] = struct{}{}
		}
	}
	if len(want) == 0 {
		return features
	}
	out := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		if _, ok := want[textnorm.Key(types.DistrictOf(f.Properties))]; ok {
			out = append(out, f)
		}
	}
	return out
}
