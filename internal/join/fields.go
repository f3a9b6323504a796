package join

import (
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
)

// Record is a property bag resolved to canonical field names.
type Record struct {
	ID           string
	City         string
	District     string
	Neighborhood string
	Year         int
	Lon          float64
	Lat          float64
	HasPoint     bool
	Metrics      map[string]float64
}

var (
	neighborhoodAliases = []string{types.FieldNeighborhood, "mahalle", "name", "Name", "clean_name"}
	idAliases           = []string{types.FieldID, "id"}

	metricAliases = map[string][]string{
		types.MetricRiskScore:     {types.MetricRiskScore},
		types.MetricVS30:          {types.MetricVS30, "vs30"},
		types.MetricPopulation:    {types.MetricPopulation, "population"},
		types.MetricBuildingCount: {types.MetricBuildingCount, "building_count"},
		types.MetricPGAMw72:       {types.MetricPGAMw72},
		types.MetricPGAMw75:       {types.MetricPGAMw75},
		types.MetricMLRiskScore:   {types.MetricMLRiskScore},
	}
)

func firstNumber(props map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := types.Number(props[k]); ok {
			return v, true
		}
	}
	return 0, false
}

// NormalizeProperties resolves the field aliases used by the different city
// datasets (il/city, ilce/ilce_adi, vs30/vs30_mean, population/toplam_nufus
// and so on) into a Record. Metrics without a numeric value are left out.
func NormalizeProperties(props map[string]any) Record {
	rec := Record{Metrics: map[string]float64{}}
	if props == nil {
		return rec
	}

	rec.ID = types.FirstString(props, idAliases)
	rec.City = types.CityOf(props)
	rec.District = types.DistrictOf(props)
	rec.Neighborhood = types.FirstString(props, neighborhoodAliases)

	if y, ok := types.Number(props[types.FieldYear]); ok {
		rec.Year = int(y)
	}

	lon, lonOK := types.Number(props[types.FieldLon])
	lat, latOK := types.Number(props[types.FieldLat])
	if lonOK && latOK {
		rec.Lon, rec.Lat, rec.HasPoint = lon, lat, true
	}

	for metric, aliases := range metricAliases {
		if v, ok := firstNumber(props, aliases); ok {
			rec.Metrics[metric] = v
		}
	}
	return rec
}

// MetricValue reads metric from props, honoring the known aliases.
func MetricValue(props map[string]any, metric string) (float64, bool) {
	if aliases, ok := metricAliases[metric]; ok {
		return firstNumber(props, aliases)
	}
	return types.Number(props[metric])
}

// MetricValues collects the finite values of metric across features.
func MetricValues(features []*geojson.Feature, metric string) []float64 {
	out := make([]float64, 0, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		if v, ok := MetricValue(f.Properties, metric); ok {
			out = append(out, v)
		}
	}
	return out
}
