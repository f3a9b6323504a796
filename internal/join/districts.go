package join

import (
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AvailableDistricts lists the distinct district names of features in Turkish
// alphabetical order. Spellings that normalize to the same key are reported
// once, using the first spelling seen.
func AvailableDistricts(features []*geojson.Feature) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, f := range features {
		if f == nil {
			continue
		}
		name := NormalizeProperties(f.Properties).District
		if name == "" {
			continue
		}
		key := NormalizeKeyText(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	collate.New(language.Turkish, collate.IgnoreCase).SortStrings(out)
	return out
}

// CityOf returns the city recorded on a feature under any of its aliases.
func CityOf(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	return types.CityOf(f.Properties)
}
