// Package viewport fits geographic bounding boxes into pixel viewports on a
// Web Mercator map.
package viewport

import (
	"fmt"
	"math"

	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// TileSize is the pixel size of one tile at integer zoom.
	TileSize = 512
	// MaxZoom is the deepest zoom a fit may produce.
	MaxZoom = 22
	// DefaultPadding is the pixel margin kept around a fitted box.
	DefaultPadding = 40
)

// Camera is a map center and fractional zoom.
type Camera struct {
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
	Zoom float64 `json:"zoom"`
}

// CenterTile returns the tile under the camera center at the integer zoom.
func (c Camera) CenterTile() maptile.Tile {
	return maptile.At(orb.Point{c.Lon, c.Lat}, maptile.Zoom(math.Floor(c.Zoom)))
}

// String formats the camera as "zoom/lat/lon", the hash form map views use.
func (c Camera) String() string {
	return fmt.Sprintf("%.2f/%.5f/%.5f", c.Zoom, c.Lat, c.Lon)
}

// Options tunes Fit.
type Options struct {
	Padding float64
	MaxZoom float64
}

// Fit returns the camera that shows b inside a width x height viewport with
// padding pixels on every side. The center is the Mercator midpoint of b.
// Viewports smaller than the padding, and invalid boxes, yield false.
func Fit(b types.BoundingBox, width, height int, opts Options) (Camera, bool) {
	if !b.Valid() || width <= 0 || height <= 0 {
		return Camera{}, false
	}
	maxZoom := opts.MaxZoom
	if maxZoom <= 0 || maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}

	w := float64(width) - 2*opts.Padding
	h := float64(height) - 2*opts.Padding
	if w <= 0 || h <= 0 {
		return Camera{}, false
	}

	minX, maxY := project(b.MinLon, b.MinLat)
	maxX, minY := project(b.MaxLon, b.MaxLat)
	dx, dy := maxX-minX, maxY-minY

	zoom := maxZoom
	scale := math.Inf(1)
	if dx > 0 {
		scale = math.Min(scale, w/(dx*TileSize))
	}
	if dy > 0 {
		scale = math.Min(scale, h/(dy*TileSize))
	}
	if !math.IsInf(scale, 1) {
		zoom = math.Max(0, math.Min(maxZoom, math.Log2(scale)))
	}

	lon, lat := unproject((minX+maxX)/2, (minY+maxY)/2)
	return Camera{Lon: lon, Lat: lat, Zoom: zoom}, true
}

// Visible returns the box a camera shows in a width x height viewport.
func Visible(c Camera, width, height int) types.BoundingBox {
	x, y := project(c.Lon, c.Lat)
	world := TileSize * math.Exp2(c.Zoom)
	hw := float64(width) / 2 / world
	hh := float64(height) / 2 / world

	minLon, minLat := unproject(x-hw, math.Min(1, y+hh))
	maxLon, maxLat := unproject(x+hw, math.Max(0, y-hh))
	return types.BoundingBox{
		MinLon: math.Max(-types.MaxLon, minLon),
		MinLat: minLat,
		MaxLon: math.Min(types.MaxLon, maxLon),
		MaxLat: maxLat,
	}
}

// project maps lon/lat to normalized Web Mercator in [0,1], y growing south.
func project(lon, lat float64) (float64, float64) {
	lat = math.Max(-maptileMaxLat, math.Min(maptileMaxLat, lat))
	x := (lon + 180) / 360
	latRad := lat * math.Pi / 180
	y := (1 - math.Log(math.Tan(math.Pi/4+latRad/2))/math.Pi) / 2
	return x, y
}

func unproject(x, y float64) (float64, float64) {
	lon := x*360 - 180
	n := math.Pi * (1 - 2*y)
	lat := math.Atan(math.Sinh(n)) * 180 / math.Pi
	return lon, lat
}

// maptileMaxLat is the latitude where Web Mercator tiles end.
const maptileMaxLat = 85.0511287798066
