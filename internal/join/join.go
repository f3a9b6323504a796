// Package join merges yearly risk tables into neighborhood boundary features.
package join

import (
	"log/slog"

	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
)

// DefaultUnitFields are metrics expected on a [0,1] scale.
var DefaultUnitFields = []string{types.MetricRiskScore, types.MetricMLRiskScore}

// Options tunes JoinRowsToFeatures.
type Options struct {
	// UnitFields are divided by 100 when the row set's maximum lies in (1,100].
	UnitFields []string
	Logger     *slog.Logger
}

// DefaultOptions returns the options used by the pipeline.
func DefaultOptions() Options {
	return Options{UnitFields: DefaultUnitFields}
}

// Stats counts the outcome of a join.
type Stats struct {
	Features   int `json:"features"`
	Rows       int `json:"rows"`
	Matched    int `json:"matched"`
	Unmatched  int `json:"unmatched"`
	Orphans    int `json:"orphans"`
	Duplicates int `json:"duplicates"`
}

// index resolves features to row positions.
type index struct {
	byID        map[string]int // city#id, city may be empty
	byIDAnyCity map[string]int // #id across cities
	byComposite map[string]int // city|district|neighborhood, city may be empty
	duplicates  int
}

func buildIndex(rows []types.Row) *index {
	idx := &index{
		byID:        make(map[string]int, len(rows)),
		byIDAnyCity: make(map[string]int, len(rows)),
		byComposite: make(map[string]int, len(rows)),
	}
	for i, row := range rows {
		rec := NormalizeProperties(row)
		if rec.ID != "" {
			key := idKey(rec.City, rec.ID)
			if _, seen := idx.byID[key]; seen {
				idx.duplicates++
			}
			idx.byID[key] = i
			idx.byIDAnyCity[idKey("", rec.ID)] = i
		}
		if rec.Neighborhood != "" {
			idx.byComposite[MakeJoinKey(rec.City, rec.District, rec.Neighborhood)] = i
			if rec.City != "" {
				idx.byComposite[MakeJoinKey("", rec.District, rec.Neighborhood)] = i
			}
		}
	}
	return idx
}

// lookup finds the row for a feature. Features with an id only match by id:
// city-scoped first, then rows without a city, then any city when the
// feature itself has none. Features without an id match by composite key.
func (idx *index) lookup(rec Record) (int, bool) {
	if rec.ID != "" {
		if i, ok := idx.byID[idKey(rec.City, rec.ID)]; ok {
			return i, true
		}
		if rec.City != "" {
			if i, ok := idx.byID[idKey("", rec.ID)]; ok {
				return i, true
			}
			return 0, false
		}
		i, ok := idx.byIDAnyCity[idKey("", rec.ID)]
		return i, ok
	}
	if rec.Neighborhood == "" {
		return 0, false
	}
	if i, ok := idx.byComposite[MakeJoinKey(rec.City, rec.District, rec.Neighborhood)]; ok {
		return i, true
	}
	i, ok := idx.byComposite[MakeJoinKey("", rec.District, rec.Neighborhood)]
	return i, ok
}

// JoinRowsToFeatures merges rows into copies of fc's features. Row fields
// override feature properties. Features without a row pass through as
// copies, rows without a feature are ignored, and a repeated identifier
// resolves to the last row. Neither fc nor rows is modified.
func JoinRowsToFeatures(fc *geojson.FeatureCollection, rows []types.Row, opts Options) (*geojson.FeatureCollection, Stats) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := geojson.NewFeatureCollection()
	stats := Stats{Rows: len(rows)}
	if fc == nil {
		stats.Orphans = len(rows)
		return out, stats
	}

	rows = HarmonizeScale(rows, opts.UnitFields)
	idx := buildIndex(rows)
	stats.Duplicates = idx.duplicates

	used := make(map[int]struct{}, len(rows))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		stats.Features++
		joined := copyFeature(f)

		i, ok := idx.lookup(NormalizeProperties(f.Properties))
		if ok {
			for k, v := range rows[i] {
				joined.Properties[k] = v
			}
			used[i] = struct{}{}
			stats.Matched++
		} else {
			stats.Unmatched++
		}
		out.Append(joined)
	}
	stats.Orphans = len(rows) - len(used)

	logger.Debug("joined rows to features",
		"features", stats.Features,
		"rows", stats.Rows,
		"matched", stats.Matched,
		"unmatched", stats.Unmatched,
		"orphans", stats.Orphans,
		"duplicates", stats.Duplicates)

	return out, stats
}

// HarmonizeScale rescales percentage-valued unit fields to [0,1]. A field is
// rescaled when its maximum across rows lies in (1,100]. Rows that change are
// cloned; the input slice is not modified.
func HarmonizeScale(rows []types.Row, fields []string) []types.Row {
	if len(rows) == 0 || len(fields) == 0 {
		return rows
	}

	var scale []string
	for _, field := range fields {
		maxV, found := 0.0, false
		for _, r := range rows {
			if v, ok := r.Number(field); ok && (!found || v > maxV) {
				maxV, found = v, true
			}
		}
		if found && maxV > 1 && maxV <= 100 {
			scale = append(scale, field)
		}
	}
	if len(scale) == 0 {
		return rows
	}

	out := make([]types.Row, len(rows))
	for i, r := range rows {
		c := r.Clone()
		for _, field := range scale {
			if v, ok := c.Number(field); ok {
				c[field] = v / 100
			}
		}
		out[i] = c
	}
	return out
}

func copyFeature(f *geojson.Feature) *geojson.Feature {
	props := make(geojson.Properties, len(f.Properties)+8)
	for k, v := range f.Properties {
		props[k] = v
	}
	return &geojson.Feature{
		ID:         f.ID,
		Type:       f.Type,
		BBox:       f.BBox,
		Geometry:   f.Geometry,
		Properties: props,
	}
}
