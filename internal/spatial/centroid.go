package spatial

import (
	"github.com/paulmach/orb"
)

// CentroidOf returns an approximate representative point: the vertex mean of
// the outer ring for polygons, and of all outer rings for multipolygons.
// Holes are not subtracted.
func CentroidOf(g orb.Geometry) (orb.Point, bool) {
	switch g := g.(type) {
	case orb.Point:
		if !finite(g[0]) || !finite(g[1]) {
			return orb.Point{}, false
		}
		return g, true
	case orb.Polygon:
		if len(g) == 0 {
			return orb.Point{}, false
		}
		return meanOf(g[0])
	case orb.MultiPolygon:
		var ring []orb.Point
		for _, poly := range g {
			if len(poly) > 0 {
				ring = append(ring, poly[0]...)
			}
		}
		return meanOf(ring)
	}
	return orb.Point{}, false
}

func meanOf(points []orb.Point) (orb.Point, bool) {
	var sx, sy float64
	n := 0
	for _, p := range points {
		if !finite(p[0]) || !finite(p[1]) {
			continue
		}
		sx += p[0]
		sy += p[1]
		n++
	}
	if n == 0 {
		return orb.Point{}, false
	}
	return orb.Point{sx / float64(n), sy / float64(n)}, true
}
