package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxExpandByFraction(t *testing.T) {
	b := BoundingBox{MinLon: 10, MinLat: 20, MaxLon: 30, MaxLat: 40}

	expanded := b.ExpandByFraction(0.1)
	// width=20, height=20 => delta=2 on each side
	if expanded.MinLon != 8 || expanded.MaxLon != 32 || expanded.MinLat != 18 || expanded.MaxLat != 42 {
		t.Fatalf("unexpected expanded bbox: %+v", expanded)
	}

	unchanged := b.ExpandByFraction(0)
	if unchanged != b {
		t.Fatalf("expected unchanged bbox, got %+v", unchanged)
	}
}

func TestBoundingBoxValid(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"istanbul", BoundingBox{MinLon: 28.0, MinLat: 40.8, MaxLon: 29.9, MaxLat: 41.6}, true},
		{"degenerate lon", BoundingBox{MinLon: 29, MinLat: 40, MaxLon: 29, MaxLat: 41}, false},
		{"inverted lat", BoundingBox{MinLon: 28, MinLat: 41, MaxLon: 29, MaxLat: 40}, false},
		{"out of world", BoundingBox{MinLon: -190, MinLat: 0, MaxLon: 10, MaxLat: 10}, false},
		{"nan", BoundingBox{MinLon: math.NaN(), MinLat: 0, MaxLon: 10, MaxLat: 10}, false},
		{"fallback", TurkeyBounds, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Valid())
		})
	}
}

func TestBoundingBoxUnionContains(t *testing.T) {
	a := BoundingBox{MinLon: 28, MinLat: 40.8, MaxLon: 29.9, MaxLat: 41.6}
	b := BoundingBox{MinLon: 31.8, MinLat: 39.5, MaxLon: 33.4, MaxLat: 40.4}

	u := a.Union(b)
	assert.True(t, u.Contains(a))
	assert.True(t, u.Contains(b))
	assert.Equal(t, [4]float64{28, 39.5, 33.4, 41.6}, u.Array())

	lon, lat := u.Center()
	assert.InDelta(t, 30.7, lon, 1e-9)
	assert.InDelta(t, 40.55, lat, 1e-9)
	assert.True(t, u.ContainsPoint(lon, lat))
}

func TestBoundingBoxBoundRoundTrip(t *testing.T) {
	b := BoundingBox{MinLon: 32.5, MinLat: 39.7, MaxLon: 33.0, MaxLat: 40.1}
	assert.Equal(t, b, FromBound(b.Bound()))
	assert.Equal(t, b, NewBoundingBox(b.Array()))
}
