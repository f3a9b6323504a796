package classify

import (
	"math"

	"github.com/FatmaElik/risk-map/internal/types"
)

// Palette5 is the default light-to-dark sequential palette.
var Palette5 = []string{"#feedde", "#fdbe85", "#fd8d3c", "#e6550d", "#a63603"}

var (
	rampRisk     = []string{"#FEF3C7", "#FCD34D", "#F59E0B", "#EF4444", "#991B1B"}
	rampVS30     = []string{"#DBEAFE", "#93C5FD", "#3B82F6", "#1D4ED8", "#1E3A8A"}
	rampPeople   = []string{"#CCFBF1", "#5EEAD4", "#14B8A6", "#0F766E", "#134E4A"}
	rampBuilding = []string{"#E9D5FF", "#C084FC", "#9333EA", "#7E22CE", "#581C87"}
	rampMw75     = []string{"#FEF3C7", "#FCD34D", "#F59E0B", "#DC2626", "#7F1D1D"}
	rampML       = []string{"#D1FAE5", "#A7F3D0", "#FCD34D", "#F59E0B", "#DC2626"}
	rampMLClass  = []string{"#10B981", "#FBBF24", "#F59E0B", "#EF4444", "#991B1B"}
)

var ramps = map[string][]string{
	types.MetricRiskScore:     rampRisk,
	types.MetricVS30:          rampVS30,
	types.MetricPopulation:    rampPeople,
	"population":              rampPeople,
	types.MetricBuildingCount: rampBuilding,
	"building_count":          rampBuilding,
	types.MetricPGAMw72:       rampRisk,
	types.MetricPGAMw75:       rampMw75,
	types.MetricMLRiskScore:   rampML,
	"ml_predicted_class":      rampMLClass,
}

// RampFor returns a copy of the five-color ramp for metric, defaulting to the
// risk score ramp.
func RampFor(metric string) []string {
	r, ok := ramps[metric]
	if !ok {
		r = rampRisk
	}
	out := make([]string, len(r))
	copy(out, r)
	return out
}

// Resample picks k colors spread evenly across ramp. Ramps shorter than k
// repeat colors.
func Resample(ramp []string, k int) []string {
	if k <= 0 || len(ramp) == 0 {
		return nil
	}
	if k == len(ramp) {
		out := make([]string, k)
		copy(out, ramp)
		return out
	}
	out := make([]string, k)
	if k == 1 {
		out[0] = ramp[len(ramp)-1]
		return out
	}
	for i := range out {
		pos := float64(i) * float64(len(ramp)-1) / float64(k-1)
		out[i] = ramp[int(math.Round(pos))]
	}
	return out
}
