// Package spatial computes and repairs bounding boxes and representative
// points for neighborhood geometries.
package spatial

import (
	"math"

	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// extent tracks the running min/max of every finite coordinate seen.
type extent struct {
	box   types.BoundingBox
	count int
}

func newExtent() *extent {
	return &extent{box: types.BoundingBox{
		MinLon: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLon: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}}
}

func (e *extent) add(p orb.Point) {
	if !finite(p[0]) || !finite(p[1]) {
		return
	}
	e.box.MinLon = math.Min(e.box.MinLon, p[0])
	e.box.MinLat = math.Min(e.box.MinLat, p[1])
	e.box.MaxLon = math.Max(e.box.MaxLon, p[0])
	e.box.MaxLat = math.Max(e.box.MaxLat, p[1])
	e.count++
}

func (e *extent) walk(g orb.Geometry) {
	switch g := g.(type) {
	case nil:
	case orb.Point:
		e.add(g)
	case orb.MultiPoint:
		for _, p := range g {
			e.add(p)
		}
	case orb.LineString:
		for _, p := range g {
			e.add(p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			e.walk(ls)
		}
	case orb.Ring:
		for _, p := range g {
			e.add(p)
		}
	case orb.Polygon:
		for _, r := range g {
			e.walk(r)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			e.walk(poly)
		}
	case orb.Collection:
		for _, c := range g {
			e.walk(c)
		}
	case orb.Bound:
		e.add(g.Min)
		e.add(g.Max)
	}
}

func (e *extent) result() (types.BoundingBox, bool) {
	if e.count == 0 || !e.box.Valid() {
		return types.BoundingBox{}, false
	}
	return e.box, true
}

// BoundsOf computes the bounding box of a geometry, feature, feature
// collection or feature slice. It reports false when no finite coordinate
// exists, the box is degenerate, or it leaves world bounds.
func BoundsOf(v any) (types.BoundingBox, bool) {
	e := newExtent()
	switch v := v.(type) {
	case orb.Geometry:
		e.walk(v)
	case *geojson.Feature:
		if v != nil {
			e.walk(v.Geometry)
		}
	case *geojson.FeatureCollection:
		if v != nil {
			for _, f := range v.Features {
				if f != nil {
					e.walk(f.Geometry)
				}
			}
		}
	case []*geojson.Feature:
		for _, f := range v {
			if f != nil {
				e.walk(f.Geometry)
			}
		}
	default:
		return types.BoundingBox{}, false
	}
	return e.result()
}

// NormalizeBoundingBox accepts a box in one of the array forms
// [x1,y1,x2,y2] or [[x1,y1],[x2,y2]] (typed slices or decoded JSON) and
// returns it longitude-first with min before max.
//
// Raw arrays whose pairs all satisfy |a| <= 90 and |b| <= 180 are assumed to be
// (lat, lng) and get swapped. Typed values (types.BoundingBox, orb.Bound) are
// already longitude-first and skip that step.
func NormalizeBoundingBox(raw any) (types.BoundingBox, bool) {
	var (
		pairs [2][2]float64
		swap  bool
	)
	switch r := raw.(type) {
	case types.BoundingBox:
		pairs = [2][2]float64{{r.MinLon, r.MinLat}, {r.MaxLon, r.MaxLat}}
	case *types.BoundingBox:
		if r == nil {
			return types.BoundingBox{}, false
		}
		pairs = [2][2]float64{{r.MinLon, r.MinLat}, {r.MaxLon, r.MaxLat}}
	case orb.Bound:
		pairs = [2][2]float64{{r.Min[0], r.Min[1]}, {r.Max[0], r.Max[1]}}
	default:
		p, ok := rawPairs(raw)
		if !ok {
			return types.BoundingBox{}, false
		}
		pairs = p
		swap = looksSwapped(pairs)
	}

	if swap {
		for i := range pairs {
			pairs[i][0], pairs[i][1] = pairs[i][1], pairs[i][0]
		}
	}

	box := types.BoundingBox{
		MinLon: math.Min(pairs[0][0], pairs[1][0]),
		MinLat: math.Min(pairs[0][1], pairs[1][1]),
		MaxLon: math.Max(pairs[0][0], pairs[1][0]),
		MaxLat: math.Max(pairs[0][1], pairs[1][1]),
	}
	if !box.Valid() {
		return types.BoundingBox{}, false
	}
	return box, true
}

// CombineBoundingBoxes normalizes every input, drops the invalid ones and
// returns the union of the rest.
func CombineBoundingBoxes(raws ...any) (types.BoundingBox, bool) {
	var (
		out   types.BoundingBox
		found bool
	)
	for _, raw := range raws {
		b, ok := NormalizeBoundingBox(raw)
		if !ok {
			continue
		}
		if !found {
			out, found = b, true
			continue
		}
		out = out.Union(b)
	}
	return out, found
}

// BoundsOrFallback returns the bounds of v, or fallback when they cannot be
// computed.
func BoundsOrFallback(v any, fallback types.BoundingBox) types.BoundingBox {
	if b, ok := BoundsOf(v); ok {
		return b
	}
	return fallback
}

func looksSwapped(pairs [2][2]float64) bool {
	for _, p := range pairs {
		if math.Abs(p[0]) > types.MaxLat || math.Abs(p[1]) > types.MaxLon {
			return false
		}
	}
	return true
}

func rawPairs(raw any) ([2][2]float64, bool) {
	var flat []float64
	switch r := raw.(type) {
	case [4]float64:
		flat = r[:]
	case []float64:
		flat = r
	case [2][2]float64:
		flat = []float64{r[0][0], r[0][1], r[1][0], r[1][1]}
	case [][]float64:
		if len(r) != 2 {
			return [2][2]float64{}, false
		}
		for _, p := range r {
			if len(p) != 2 {
				return [2][2]float64{}, false
			}
			flat = append(flat, p...)
		}
	case []orb.Point:
		if len(r) != 2 {
			return [2][2]float64{}, false
		}
		flat = []float64{r[0][0], r[0][1], r[1][0], r[1][1]}
	case []any:
		vals, ok := flattenAny(r)
		if !ok {
			return [2][2]float64{}, false
		}
		flat = vals
	default:
		return [2][2]float64{}, false
	}

	if len(flat) != 4 {
		return [2][2]float64{}, false
	}
	for _, v := range flat {
		if !finite(v) {
			return [2][2]float64{}, false
		}
	}
	return [2][2]float64{{flat[0], flat[1]}, {flat[2], flat[3]}}, true
}

// flattenAny handles decoded JSON: either four numbers or two two-number arrays.
func flattenAny(r []any) ([]float64, bool) {
	switch len(r) {
	case 4:
		out := make([]float64, 0, 4)
		for _, v := range r {
			f, ok := types.Number(v)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	case 2:
		out := make([]float64, 0, 4)
		for _, p := range r {
			pair, ok := p.([]any)
			if !ok {
				if fp, isFloat := p.([]float64); isFloat && len(fp) == 2 {
					out = append(out, fp...)
					continue
				}
				return nil, false
			}
			if len(pair) != 2 {
				return nil, false
			}
			for _, v := range pair {
				f, ok := types.Number(v)
				if !ok {
					return nil, false
				}
				out = append(out, f)
			}
		}
		return out, true
	}
	return nil, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
