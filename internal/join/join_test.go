package join

import (
	"testing"

	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPolygon() orb.Polygon {
	return orb.Polygon{{{29.0, 41.0}, {29.1, 41.0}, {29.1, 41.1}, {29.0, 41.1}, {29.0, 41.0}}}
}

func featureWith(props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(validPolygon())
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func collection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	return fc
}

func TestJoinMatchesByID(t *testing.T) {
	rows := []types.Row{{"id": "A1", "risk_score": 0.5}}
	fc := collection(featureWith(map[string]any{"id": "A1"}))

	out, stats := JoinRowsToFeatures(fc, rows, DefaultOptions())
	require.Len(t, out.Features, 1)
	assert.Equal(t, 0.5, out.Features[0].Properties["risk_score"])
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 0, stats.Orphans)
}

func TestJoinUnmatchedFeaturePassesThrough(t *testing.T) {
	rows := []types.Row{{"id": "A1", "risk_score": 0.9}}
	fc := collection(featureWith(map[string]any{"id": "B2"}))

	out, stats := JoinRowsToFeatures(fc, rows, DefaultOptions())
	require.Len(t, out.Features, 1)
	assert.Equal(t, "B2", out.Features[0].Properties["id"])
	assert.NotContains(t, out.Features[0].Properties, "risk_score")
	assert.Equal(t, validPolygon(), out.Features[0].Geometry)
	assert.Equal(t, Stats{Features: 1, Rows: 1, Unmatched: 1, Orphans: 1}, stats)
}

func TestJoinIDComparison(t *testing.T) {
	// ids fold like names, and a numeric table cell loses its leading zeros
	rows := []types.Row{
		{"mah_id": "A1", "risk_score": 0.4},
		{"mah_id": 123.0, "risk_score": 0.6},
	}
	fc := collection(
		featureWith(map[string]any{"mah_id": "a1"}),
		featureWith(map[string]any{"mah_id": "00123"}),
	)

	out, stats := JoinRowsToFeatures(fc, rows, DefaultOptions())
	require.Len(t, out.Features, 2)
	assert.Equal(t, 0.4, out.Features[0].Properties["risk_score"])
	assert.NotContains(t, out.Features[1].Properties, "risk_score")
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.Unmatched)
}

func TestJoinRowOverridesFeature(t *testing.T) {
	rows := []types.Row{{"mah_id": "7", "mahalle_adi": "Moda", "risk_score": 0.3}}
	fc := collection(featureWith(map[string]any{"mah_id": 7.0, "mahalle_adi": "MODA MAH.", "area": 12.0}))

	out, _ := JoinRowsToFeatures(fc, rows, DefaultOptions())
	props := out.Features[0].Properties
	assert.Equal(t, "Moda", props["mahalle_adi"])
	assert.Equal(t, 12.0, props["area"])
	assert.Equal(t, 0.3, props["risk_score"])
}

func TestJoinScopesIDsByCity(t *testing.T) {
	rows := []types.Row{
		{"city": "Istanbul", "mah_id": "1", "risk_score": 0.1},
		{"city": "Ankara", "mah_id": "1", "risk_score": 0.8},
	}
	fc := collection(
		featureWith(map[string]any{"city": "İSTANBUL", "mah_id": "1"}),
		featureWith(map[string]any{"city": "Ankara", "mah_id": "1"}),
		featureWith(map[string]any{"city": "Izmir", "mah_id": "1"}),
	)

	out, stats := JoinRowsToFeatures(fc, rows, DefaultOptions())
	assert.Equal(t, 0.1, out.Features[0].Properties["risk_score"])
	assert.Equal(t, 0.8, out.Features[1].Properties["risk_score"])
	assert.NotContains(t, out.Features[2].Properties, "risk_score")
	assert.Equal(t, 2, stats.Matched)
}

func TestJoinFallsBackToCompositeKey(t *testing.T) {
	rows := []types.Row{
		{"ilce_adi": "KADIKÖY", "mahalle_adi": "CAFERAĞA", "risk_score": 0.4},
	}
	fc := collection(
		featureWith(map[string]any{"city": "Istanbul", "ilce": "Kadıköy", "mahalle": "Caferağa"}),
		featureWith(map[string]any{"city": "Istanbul", "ilce": "Kadıköy", "mahalle": "Moda"}),
	)

	out, stats := JoinRowsToFeatures(fc, rows, DefaultOptions())
	assert.Equal(t, 0.4, out.Features[0].Properties["risk_score"])
	assert.NotContains(t, out.Features[1].Properties, "risk_score")
	assert.Equal(t, 1, stats.Matched)
}

func TestJoinLastWriteWins(t *testing.T) {
	rows := []types.Row{
		{"mah_id": "A1", "risk_score": 0.2},
		{"mah_id": "A1", "risk_score": 0.7},
	}
	fc := collection(featureWith(map[string]any{"mah_id": "A1"}))

	out, stats := JoinRowsToFeatures(fc, rows, DefaultOptions())
	assert.Equal(t, 0.7, out.Features[0].Properties["risk_score"])
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Orphans)
}

func TestJoinIsIdempotentAndDoesNotMutate(t *testing.T) {
	rows := []types.Row{{"mah_id": "A1", "risk_score": 45.0, "vs30_mean": 310.0}}
	feature := featureWith(map[string]any{"mah_id": "A1", "name": "Moda"})
	fc := collection(feature)

	first, _ := JoinRowsToFeatures(fc, rows, DefaultOptions())
	second, _ := JoinRowsToFeatures(fc, rows, DefaultOptions())

	assert.Equal(t, first, second)
	assert.NotContains(t, feature.Properties, "risk_score")
	assert.Equal(t, 45.0, rows[0]["risk_score"])
	assert.NotSame(t, feature, first.Features[0])
}

func TestJoinHarmonizesPercentScores(t *testing.T) {
	rows := []types.Row{
		{"mah_id": "A1", "risk_score": 45.0, "toplam_nufus": 12000.0},
		{"mah_id": "A2", "risk_score": 90.0},
	}
	fc := collection(featureWith(map[string]any{"mah_id": "A1"}), featureWith(map[string]any{"mah_id": "A2"}))

	out, _ := JoinRowsToFeatures(fc, rows, DefaultOptions())
	assert.InDelta(t, 0.45, out.Features[0].Properties["risk_score"], 1e-12)
	assert.InDelta(t, 0.9, out.Features[1].Properties["risk_score"], 1e-12)
	assert.Equal(t, 12000.0, out.Features[0].Properties["toplam_nufus"])

	raw, _ := JoinRowsToFeatures(fc, rows, Options{})
	assert.Equal(t, 45.0, raw.Features[0].Properties["risk_score"])
}

func TestHarmonizeScaleLeavesUnitAndLargeValues(t *testing.T) {
	unit := []types.Row{{"risk_score": 0.4}, {"risk_score": 1.0}}
	assert.Equal(t, unit, HarmonizeScale(unit, DefaultUnitFields))

	huge := []types.Row{{"risk_score": 250.0}}
	assert.Equal(t, huge, HarmonizeScale(huge, DefaultUnitFields))
}

func TestJoinNilCollection(t *testing.T) {
	out, stats := JoinRowsToFeatures(nil, []types.Row{{"mah_id": "1"}}, DefaultOptions())
	assert.Empty(t, out.Features)
	assert.Equal(t, 1, stats.Orphans)
}

func TestMakeJoinKey(t *testing.T) {
	assert.Equal(t, "istanbul|kadikoy|caferaga", MakeJoinKey("İstanbul", " KADIKÖY ", "Caferağa"))
	assert.Equal(t, MakeJoinKey("", "Çankaya", "Kızılay"), MakeJoinKey("", "CANKAYA", "kizilay"))
	assert.Equal(t, NormalizeKeyText("İSTANBUL"), NormalizeKeyText("istanbul"))
	assert.Equal(t, NormalizeKeyText("IŞIK"), NormalizeKeyText("isik"))
}
