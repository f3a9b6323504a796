package classify

import "math"

// RiskBins is the fixed five-class scale for unit risk scores.
var RiskBins = []float64{0, 0.18, 0.23, 0.30, 0.43, 1.0}

// RiskColors pairs with RiskBins.
var RiskColors = []string{"#F7E6B5", "#F3C74E", "#E79A3C", "#C3423B", "#7A1E1E"}

var riskLabels = map[string][]string{
	"tr": {"Çok Düşük", "Düşük", "Orta", "Yüksek", "Çok Yüksek"},
	"en": {"Very Low", "Low", "Medium", "High", "Very High"},
}

// RiskClass places a score on the fixed scale. Scores are clamped to [0,1]
// with non-finite treated as 0; each class includes its lower edge and the
// score 1.0 lands in the top class.
func RiskClass(score float64) int {
	s := score
	if math.IsNaN(s) || math.IsInf(s, 0) {
		s = 0
	}
	s = math.Max(0, math.Min(1, s))
	for i := 0; i < len(RiskBins)-1; i++ {
		if s >= RiskBins[i] && s < RiskBins[i+1] {
			return i
		}
	}
	return len(RiskBins) - 2
}

// RiskColor returns the fixed-scale color for a score.
func RiskColor(score float64) string {
	return RiskColors[RiskClass(score)]
}

// RiskLabels returns the class names for lang ("tr" or "en"), English when
// the language is unknown.
func RiskLabels(lang string) []string {
	l, ok := riskLabels[lang]
	if !ok {
		l = riskLabels["en"]
	}
	out := make([]string, len(l))
	copy(out, l)
	return out
}
