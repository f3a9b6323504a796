package classify

// DefaultClasses is the class count used across the dashboard.
const DefaultClasses = 5

// Result bundles everything a legend and a fill expression need for one
// metric over one sample.
type Result struct {
	Metric  string       `json:"metric"`
	Method  Method       `json:"method"`
	Classes int          `json:"classes"`
	Count   int          `json:"count"`
	Breaks  []float64    `json:"breaks"`
	Palette []string     `json:"palette"`
	Legend  []LegendItem `json:"legend"`
}

// Classify chooses breaks for values and pairs them with metric's ramp. A
// sample without finite values yields no breaks and an empty legend.
func Classify(metric string, values []float64, k int) Result {
	if k < 1 {
		k = DefaultClasses
	}
	breaks, method := ChooseBreaks(values, k)
	palette := Resample(RampFor(metric), k)
	res := Result{
		Metric:  metric,
		Method:  method,
		Classes: k,
		Count:   len(finiteSorted(values)),
		Breaks:  breaks,
		Palette: palette,
	}
	if len(breaks) > 1 {
		res.Legend = Legend(breaks, palette, Precision(breaks))
	}
	return res
}

// Color maps v onto the result's palette.
func (r Result) Color(v float64) string {
	return ColorFor(v, r.Breaks, r.Palette)
}
