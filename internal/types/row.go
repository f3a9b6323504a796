// Package types holds the data shapes shared by the risk-map pipeline packages.
package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Property names used by the boundary and risk table sources.
const (
	FieldID           = "mah_id"
	FieldCity         = "city"
	FieldDistrict     = "ilce_adi"
	FieldNeighborhood = "mahalle_adi"
	FieldYear         = "year"
	FieldLon          = "lon"
	FieldLat          = "lat"

	MetricRiskScore     = "risk_score"
	MetricVS30          = "vs30_mean"
	MetricPopulation    = "toplam_nufus"
	MetricBuildingCount = "toplam_bina"
	MetricPGAMw72       = "pga_scenario_mw72"
	MetricPGAMw75       = "pga_scenario_mw75"
	MetricMLRiskScore   = "ml_risk_score"
)

// Metrics lists every numeric metric the dashboard can color by.
var Metrics = []string{
	MetricRiskScore,
	MetricVS30,
	MetricPopulation,
	MetricBuildingCount,
	MetricPGAMw72,
	MetricPGAMw75,
	MetricMLRiskScore,
}

// Property names that carry the city or district in the different city
// datasets, in lookup order.
var (
	CityAliases     = []string{FieldCity, "il", "City"}
	DistrictAliases = []string{FieldDistrict, "district", "ilce", "District"}
)

// FirstString returns the first non-empty string form among props[keys...].
func FirstString(props map[string]any, keys []string) string {
	for _, k := range keys {
		if s := String(props[k]); s != "" {
			return s
		}
	}
	return ""
}

// CityOf returns the city of a property bag, honoring CityAliases.
func CityOf(props map[string]any) string {
	return FirstString(props, CityAliases)
}

// DistrictOf returns the district of a property bag, honoring DistrictAliases.
func DistrictOf(props map[string]any) string {
	return FirstString(props, DistrictAliases)
}

// Row is one record of a risk table, keyed by column header.
// Numeric-looking cells hold float64, empty cells are absent.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Number extracts a finite float from r[key].
func (r Row) Number(key string) (float64, bool) {
	return Number(r[key])
}

// String extracts a trimmed string form of r[key].
func (r Row) String(key string) string {
	return String(r[key])
}

// Number coerces a property value to a finite float64.
// Strings are parsed; anything non-finite or non-numeric reports false.
func Number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String renders a property value as a trimmed string. Whole floats drop
// their fractional part so numeric ids compare equal to their text form.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		return ""
	}
}

// PointSample is a flattened neighborhood record carrying a representative
// point, used by scatter-style analysis.
type PointSample struct {
	ID           string             `json:"mah_id,omitempty"`
	City         string             `json:"city,omitempty"`
	District     string             `json:"district,omitempty"`
	Neighborhood string             `json:"neighborhood,omitempty"`
	Year         int                `json:"year,omitempty"`
	Lon          float64            `json:"lon"`
	Lat          float64            `json:"lat"`
	Metrics      map[string]float64 `json:"metrics"`
}
