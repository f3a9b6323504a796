package join

import (
	"github.com/FatmaElik/risk-map/internal/spatial"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
)

// ExtractPointSamples flattens joined features into point samples, using the
// geometry centroid or else lon/lat properties. Without features it falls
// back to rows carrying lon/lat. Records without a usable point are dropped.
func ExtractPointSamples(rows []types.Row, fc *geojson.FeatureCollection) []types.PointSample {
	out := []types.PointSample{}

	if fc != nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			if f == nil {
				continue
			}
			rec := NormalizeProperties(f.Properties)
			if c, ok := spatial.CentroidOf(f.Geometry); ok {
				rec.Lon, rec.Lat, rec.HasPoint = c.Lon(), c.Lat(), true
			}
			if s, ok := sampleOf(rec); ok {
				out = append(out, s)
			}
		}
		return out
	}

	for _, r := range rows {
		if s, ok := sampleOf(NormalizeProperties(r)); ok {
			out = append(out, s)
		}
	}
	return out
}

func sampleOf(rec Record) (types.PointSample, bool) {
	if !rec.HasPoint {
		return types.PointSample{}, false
	}
	if rec.Lon < -types.MaxLon || rec.Lon > types.MaxLon || rec.Lat < -types.MaxLat || rec.Lat > types.MaxLat {
		return types.PointSample{}, false
	}
	return types.PointSample{
		ID:           rec.ID,
		City:         rec.City,
		District:     rec.District,
		Neighborhood: rec.Neighborhood,
		Year:         rec.Year,
		Lon:          rec.Lon,
		Lat:          rec.Lat,
		Metrics:      rec.Metrics,
	}, true
}
