package classify

import (
	"math"
	"strconv"
)

// NoDataColor fills features without a usable value.
const NoDataColor = "#cccccc"

// ClassIndexOf maps v to a class in [0, k-1] for breaks of length k+1.
// Intervals are [b0,b1], (b1,b2], ..., (bk-1,bk]; values outside the range
// clamp to the first or last class. It returns -1 for a non-finite value or
// when fewer than two breaks are given.
func ClassIndexOf(v float64, breaks []float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || len(breaks) < 2 {
		return -1
	}
	k := len(breaks) - 1
	for i := 1; i <= k; i++ {
		if v <= breaks[i] {
			return i - 1
		}
	}
	return k - 1
}

// ColorFor returns the palette color of v's class, or NoDataColor when v has
// no class or the palette is too short.
func ColorFor(v float64, breaks []float64, palette []string) string {
	idx := ClassIndexOf(v, breaks)
	if idx < 0 || idx >= len(palette) {
		return NoDataColor
	}
	return palette[idx]
}

// LegendItem describes one class of a legend.
type LegendItem struct {
	Class int     `json:"class"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Label string  `json:"label"`
	Color string  `json:"color"`
}

// ClassLabel formats the range of class idx with the given decimal precision.
// The first class reads "<= b1", the last "> bk-1".
func ClassLabel(idx int, breaks []float64, precision int) string {
	k := len(breaks) - 1
	if idx < 0 || idx >= k {
		return ""
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', precision, 64) }
	switch {
	case k == 1:
		return f(breaks[0]) + " - " + f(breaks[1])
	case idx == 0:
		return "<= " + f(breaks[1])
	case idx == k-1:
		return "> " + f(breaks[k-1])
	}
	return f(breaks[idx]) + " - " + f(breaks[idx+1])
}

// Legend builds one item per class. Colors beyond the palette fall back to
// NoDataColor.
func Legend(breaks []float64, palette []string, precision int) []LegendItem {
	k := len(breaks) - 1
	if k < 1 {
		return nil
	}
	items := make([]LegendItem, 0, k)
	for i := 0; i < k; i++ {
		color := NoDataColor
		if i < len(palette) {
			color = palette[i]
		}
		items = append(items, LegendItem{
			Class: i,
			Min:   breaks[i],
			Max:   breaks[i+1],
			Label: ClassLabel(i, breaks, precision),
			Color: color,
		})
	}
	return items
}

// Precision picks a label precision from the spread of breaks: two decimals
// for unit-scale metrics, none for counts.
func Precision(breaks []float64) int {
	if len(breaks) < 2 {
		return 0
	}
	span := breaks[len(breaks)-1] - breaks[0]
	switch {
	case span <= 1:
		return 2
	case span <= 10:
		return 1
	}
	return 0
}
