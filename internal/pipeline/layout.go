package pipeline

import (
	"strconv"
	"strings"
)

// Layout names the resources a snapshot is built from.
type Layout struct {
	Neighborhoods []string
	// LegacyNeighborhoods are read only when none of Neighborhoods loads.
	LegacyNeighborhoods []string
	Districts           []string
	Provinces           []string
	// TablePattern is the risk table path with a {year} placeholder.
	TablePattern string
}

// DefaultLayout is the published data directory layout.
func DefaultLayout() Layout {
	return Layout{
		Neighborhoods: []string{
			"/data/boundaries/ankara_neighborhoods.geojson",
			"/data/boundaries/istanbul_neighborhoods.geojson",
		},
		LegacyNeighborhoods: []string{
			"/data/ankara_mahalle_risk.geojson",
			"/data/istanbul_mahalle_risk.geojson",
		},
		Districts: []string{
			"/data/boundaries/ankara_districts.geojson",
			"/data/boundaries/istanbul_districts.geojson",
		},
		Provinces: []string{
			"/data/boundaries/ankara_province.geojson",
			"/data/boundaries/istanbul_province_polygon.geojson",
		},
		TablePattern: "/data/risk/{year}.csv",
	}
}

// TablePath returns the risk table path for year.
func (l Layout) TablePath(year int) string {
	return strings.ReplaceAll(l.TablePattern, "{year}", strconv.Itoa(year))
}
