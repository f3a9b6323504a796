package types

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// World limits in WGS84 (EPSG:4326) degrees.
const (
	MaxLon = 180.0
	MaxLat = 90.0
)

// BoundingBox represents a geographic bounding box in WGS84 (EPSG:4326)
type BoundingBox struct {
	MinLon float64 // Western edge (degrees)
	MinLat float64 // Southern edge (degrees)
	MaxLon float64 // Eastern edge (degrees)
	MaxLat float64 // Northern edge (degrees)
}

// TurkeyBounds covers the whole territory served by the dashboard. It is the
// framing region used whenever a bounding box cannot be computed.
var TurkeyBounds = BoundingBox{MinLon: 25.6, MinLat: 35.8, MaxLon: 44.8, MaxLat: 42.1}

// NewBoundingBox builds a box from the [minLng, minLat, maxLng, maxLat] array form.
func NewBoundingBox(a [4]float64) BoundingBox {
	return BoundingBox{MinLon: a[0], MinLat: a[1], MaxLon: a[2], MaxLat: a[3]}
}

// FromBound converts an orb.Bound to a BoundingBox.
func FromBound(b orb.Bound) BoundingBox {
	return BoundingBox{MinLon: b.Min.Lon(), MinLat: b.Min.Lat(), MaxLon: b.Max.Lon(), MaxLat: b.Max.Lat()}
}

// Array returns the box as [minLng, minLat, maxLng, maxLat].
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// Bound returns the box as an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// Valid reports whether every edge is finite, inside world bounds and the box
// has a positive extent on both axes.
func (b BoundingBox) Valid() bool {
	for _, v := range b.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.MinLon < -MaxLon || b.MaxLon > MaxLon || b.MinLat < -MaxLat || b.MaxLat > MaxLat {
		return false
	}
	return b.MinLon < b.MaxLon && b.MinLat < b.MaxLat
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinLon: math.Min(b.MinLon, o.MinLon),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
	}
}

// Contains reports whether o lies entirely inside b (edges inclusive).
func (b BoundingBox) Contains(o BoundingBox) bool {
	return o.MinLon >= b.MinLon && o.MaxLon <= b.MaxLon && o.MinLat >= b.MinLat && o.MaxLat <= b.MaxLat
}

// ContainsPoint reports whether the lon/lat point lies inside b.
func (b BoundingBox) ContainsPoint(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ExpandByFraction grows the box by frac of its width/height on each side.
func (b BoundingBox) ExpandByFraction(frac float64) BoundingBox {
	if frac <= 0 {
		return b
	}
	dx := b.Width() * frac
	dy := b.Height() * frac
	return BoundingBox{
		MinLon: b.MinLon - dx,
		MinLat: b.MinLat - dy,
		MaxLon: b.MaxLon + dx,
		MaxLat: b.MaxLat + dy,
	}
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() (lon, lat float64) {
	return (b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2
}

// Width returns the width of the bounding box in degrees
func (b BoundingBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// Height returns the height of the bounding box in degrees
func (b BoundingBox) Height() float64 {
	return b.MaxLat - b.MinLat
}
