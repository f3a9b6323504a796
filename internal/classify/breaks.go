// Package classify computes choropleth class breaks and maps values onto
// classes and palette colors.
package classify

import (
	"math"
	"sort"
)

// Method names a break computation strategy.
type Method string

const (
	MethodQuantile      Method = "quantile"
	MethodJenks         Method = "jenks"
	MethodEqualInterval Method = "equal_interval"
)

// JenksMinDistinct is the number of distinct values required before
// ChooseBreaks uses natural breaks.
const JenksMinDistinct = 20

// DefaultBins is returned by Bins for an empty sample.
var DefaultBins = []float64{0, 0.2, 0.4, 0.6, 0.8, 1}

// finiteSorted returns the finite values of v in ascending order.
func finiteSorted(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// DistinctCount counts distinct finite values.
func DistinctCount(values []float64) int {
	sorted := finiteSorted(values)
	n := 0
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			n++
		}
	}
	return n
}

// QuantileBreaks returns k+1 thresholds at the 0, 1/k, ..., 1 quantiles,
// interpolating linearly between order statistics. The first threshold is the
// sample minimum and the last the maximum. Non-finite values are ignored; a
// sample without finite values yields nil.
func QuantileBreaks(values []float64, k int) []float64 {
	if k < 1 {
		return nil
	}
	sorted := finiteSorted(values)
	if len(sorted) == 0 {
		return nil
	}
	return quantilesOfSorted(sorted, k)
}

func quantilesOfSorted(sorted []float64, k int) []float64 {
	n := len(sorted)
	breaks := make([]float64, k+1)
	for i := 0; i <= k; i++ {
		breaks[i] = quantileAt(sorted, float64(i)/float64(k))
	}
	breaks[0] = sorted[0]
	breaks[k] = sorted[n-1]
	return breaks
}

func quantileAt(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := float64(n-1) * p
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// EqualIntervalBreaks splits [min, max] into k equal-width classes.
func EqualIntervalBreaks(values []float64, k int) []float64 {
	if k < 1 {
		return nil
	}
	sorted := finiteSorted(values)
	if len(sorted) == 0 {
		return nil
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	breaks := make([]float64, k+1)
	step := (hi - lo) / float64(k)
	for i := range breaks {
		breaks[i] = lo + step*float64(i)
	}
	breaks[k] = hi
	return breaks
}

// JenksBreaks computes Fisher-Jenks natural breaks, minimizing the total
// within-class sum of squared deviations over exactly k classes. With fewer
// than k finite values it falls back to QuantileBreaks.
func JenksBreaks(values []float64, k int) []float64 {
	if k < 1 {
		return nil
	}
	data := finiteSorted(values)
	n := len(data)
	if n == 0 {
		return nil
	}
	if n < k {
		return quantilesOfSorted(data, k)
	}

	// lower[l][j]: 1-based index of the first value of class j in the best
	// partition of data[:l]; variance[l][j]: its total squared deviation.
	lower := make([][]int, n+1)
	variance := make([][]float64, n+1)
	for i := range lower {
		lower[i] = make([]int, k+1)
		variance[i] = make([]float64, k+1)
	}
	for j := 1; j <= k; j++ {
		lower[1][j] = 1
		for l := 2; l <= n; l++ {
			variance[l][j] = math.Inf(1)
		}
	}

	for l := 2; l <= n; l++ {
		var sum, sumSq, w float64
		var v float64
		for m := 1; m <= l; m++ {
			lowerIdx := l - m + 1
			val := data[lowerIdx-1]
			sumSq += val * val
			sum += val
			w++
			v = sumSq - (sum*sum)/w
			prev := lowerIdx - 1
			if prev == 0 {
				continue
			}
			for j := 2; j <= k; j++ {
				if variance[l][j] >= v+variance[prev][j-1] {
					lower[l][j] = lowerIdx
					variance[l][j] = v + variance[prev][j-1]
				}
			}
		}
		lower[l][1] = 1
		variance[l][1] = v
	}

	breaks := make([]float64, k+1)
	breaks[0] = data[0]
	breaks[k] = data[n-1]
	end := n
	for j := k; j >= 2; j-- {
		idx := lower[end][j] - 2
		if idx < 0 {
			idx = 0
		}
		breaks[j-1] = data[idx]
		end = lower[end][j] - 1
		if end < 1 {
			end = 1
		}
	}
	return breaks
}

// ChooseBreaks uses natural breaks when the sample has at least
// JenksMinDistinct distinct values, quantiles otherwise.
func ChooseBreaks(values []float64, k int) ([]float64, Method) {
	if DistinctCount(values) >= JenksMinDistinct {
		return JenksBreaks(values, k), MethodJenks
	}
	return QuantileBreaks(values, k), MethodQuantile
}

// Bins returns k+1 thresholds for a legend: equal interval for samples with at
// most ten distinct values, quantiles otherwise, DefaultBins when empty.
func Bins(values []float64, k int) ([]float64, Method) {
	distinct := DistinctCount(values)
	switch {
	case distinct == 0:
		out := make([]float64, len(DefaultBins))
		copy(out, DefaultBins)
		return out, MethodEqualInterval
	case distinct <= 10:
		return EqualIntervalBreaks(values, k), MethodEqualInterval
	}
	return QuantileBreaks(values, k), MethodQuantile
}

// WithinClassSSD sums the squared deviations of each finite value from the
// mean of the class ClassIndexOf assigns it to. Lower is a tighter fit.
func WithinClassSSD(values []float64, breaks []float64) float64 {
	k := len(breaks) - 1
	if k < 1 {
		return 0
	}
	sums := make([]float64, k)
	counts := make([]float64, k)
	members := make([][]float64, k)
	for _, v := range finiteSorted(values) {
		idx := ClassIndexOf(v, breaks)
		if idx < 0 {
			continue
		}
		sums[idx] += v
		counts[idx]++
		members[idx] = append(members[idx], v)
	}
	var total float64
	for i := range members {
		if counts[i] == 0 {
			continue
		}
		mean := sums[i] / counts[i]
		for _, v := range members[i] {
			d := v - mean
			total += d * d
		}
	}
	return total
}
