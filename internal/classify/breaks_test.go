package classify

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneToTen() []float64 {
	return []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
}

func assertNonDecreasing(t *testing.T, breaks []float64) {
	t.Helper()
	for i := 1; i < len(breaks); i++ {
		assert.LessOrEqual(t, breaks[i-1], breaks[i], "breaks not sorted at %d: %v", i, breaks)
	}
}

func TestQuantileBreaksInterpolates(t *testing.T) {
	got := QuantileBreaks(oneToTen(), 5)
	assert.InDeltaSlice(t, []float64{1, 2.8, 4.6, 6.4, 8.2, 10}, got, 1e-9)
}

func TestQuantileBreaksProperties(t *testing.T) {
	samples := [][]float64{
		{5},
		{3, 3, 3},
		{0.1, 0.9, 0.4},
		{10, -2, 7, 7, 7, 1e6},
		{math.NaN(), 4, math.Inf(1), 2},
	}
	for _, s := range samples {
		for k := 1; k <= 7; k++ {
			got := QuantileBreaks(s, k)
			require.Len(t, got, k+1)
			assertNonDecreasing(t, got)

			sorted := finiteSorted(s)
			assert.Equal(t, sorted[0], got[0])
			assert.Equal(t, sorted[len(sorted)-1], got[k])
		}
	}
}

func TestQuantileBreaksEmpty(t *testing.T) {
	assert.Nil(t, QuantileBreaks(nil, 5))
	assert.Nil(t, QuantileBreaks([]float64{math.NaN()}, 5))
	assert.Nil(t, QuantileBreaks(oneToTen(), 0))
}

func TestJenksBreaksFindsClusters(t *testing.T) {
	values := []float64{1, 2, 3, 10, 11, 12, 20, 21, 22, 30, 31, 50, 51, 52}
	got := JenksBreaks(values, 5)
	assert.Equal(t, []float64{1, 3, 12, 22, 31, 52}, got)
}

func TestJenksBreaksBeatsQuantile(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		values := make([]float64, 60)
		for i := range values {
			// skewed sample, like population counts
			values[i] = math.Exp(rng.Float64()*4) * 100
		}
		for _, k := range []int{3, 5, 7} {
			jenks := JenksBreaks(values, k)
			require.Len(t, jenks, k+1)
			assertNonDecreasing(t, jenks)

			quantile := QuantileBreaks(values, k)
			assert.LessOrEqual(t, WithinClassSSD(values, jenks), WithinClassSSD(values, quantile)+1e-6)
		}
	}
}

func TestJenksBreaksFallsBackWithFewValues(t *testing.T) {
	values := []float64{1, 2, 3}
	assert.Equal(t, QuantileBreaks(values, 5), JenksBreaks(values, 5))
	assert.Nil(t, JenksBreaks(nil, 5))
}

func TestChooseBreaks(t *testing.T) {
	_, method := ChooseBreaks(oneToTen(), 5)
	assert.Equal(t, MethodQuantile, method)

	many := make([]float64, 0, 40)
	for i := 0; i < 20; i++ {
		many = append(many, float64(i), float64(i))
	}
	breaks, method := ChooseBreaks(many, 5)
	assert.Equal(t, MethodJenks, method)
	assert.Len(t, breaks, 6)

	// 19 distinct values repeated many times stays on quantiles
	repeated := make([]float64, 0, 190)
	for i := 0; i < 190; i++ {
		repeated = append(repeated, float64(i%19))
	}
	_, method = ChooseBreaks(repeated, 5)
	assert.Equal(t, MethodQuantile, method)
}

func TestBins(t *testing.T) {
	got, method := Bins(nil, 5)
	assert.Equal(t, DefaultBins, got)
	assert.Equal(t, MethodEqualInterval, method)

	got, method = Bins([]float64{1, 5, 1, 5, 3}, 5)
	assert.Equal(t, MethodEqualInterval, method)
	assert.InDeltaSlice(t, []float64{1, 1.8, 2.6, 3.4, 4.2, 5}, got, 1e-9)

	values := make([]float64, 0, 11)
	for i := 0; i <= 10; i++ {
		values = append(values, float64(i))
	}
	got, method = Bins(values, 5)
	assert.Equal(t, MethodQuantile, method)
	assert.InDeltaSlice(t, []float64{0, 2, 4, 6, 8, 10}, got, 1e-9)
}

func TestDistinctCount(t *testing.T) {
	assert.Equal(t, 3, DistinctCount([]float64{1, 1, 2, 3, math.NaN(), 3}))
	assert.Equal(t, 0, DistinctCount(nil))
}
