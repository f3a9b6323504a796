package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.42, 0.42, true},
		{12, 12, true},
		{" 3.5 ", 3.5, true},
		{"", 0, false},
		{"n/a", 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
		{nil, 0, false},
		{true, 0, false},
	}

	for _, tt := range tests {
		got, ok := Number(tt.in)
		assert.Equal(t, tt.ok, ok, "input %#v", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-12)
		}
	}
}

func TestStringRendersWholeFloatsAsIntegers(t *testing.T) {
	assert.Equal(t, "1234", String(1234.0))
	assert.Equal(t, "12.5", String(12.5))
	assert.Equal(t, "A1", String("  A1 "))
	assert.Equal(t, "", String(nil))
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := Row{FieldID: "A1", MetricRiskScore: 0.5}
	c := r.Clone()
	c[MetricRiskScore] = 0.9

	v, ok := r.Number(MetricRiskScore)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, "A1", c.String(FieldID))
}

func TestCityAndDistrictAliases(t *testing.T) {
	assert.Equal(t, "Ankara", CityOf(map[string]any{"il": "Ankara"}))
	assert.Equal(t, "Ankara", CityOf(map[string]any{"city": " Ankara ", "il": "Izmir"}))
	assert.Equal(t, "Izmir", CityOf(map[string]any{"city": "", "City": "Izmir"}))
	assert.Equal(t, "", CityOf(nil))

	assert.Equal(t, "Çankaya", DistrictOf(map[string]any{"ilce": "Çankaya"}))
	assert.Equal(t, "Kadıköy", DistrictOf(map[string]any{"District": "Kadıköy"}))
	assert.Equal(t, "Bornova", DistrictOf(map[string]any{"ilce_adi": "Bornova", "district": "Konak"}))
}
