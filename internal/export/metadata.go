// Package export writes snapshots to CSV files and SQLite archives, and reads
// archives back as snapshots.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Metadata contains archive metadata fields.
type Metadata struct {
	Name        string // Human-readable archive identifier
	Description string
	Attribution string
	Version     string
	Bounds      [4]float64 // minLng, minLat, maxLng, maxLat over all snapshots
	Years       []int
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Attribution != "" {
		result["attribution"] = m.Attribution
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if m.Bounds != [4]float64{} {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3])
	}
	if len(m.Years) > 0 {
		years := make([]string, len(m.Years))
		for i, y := range m.Years {
			years[i] = strconv.Itoa(y)
		}
		result["years"] = strings.Join(years, ",")
	}

	return result
}

func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Description: values["description"],
		Attribution: values["attribution"],
		Version:     values["version"],
	}

	// "minLng,minLat,maxLng,maxLat"
	if v, ok := values["bounds"]; ok {
		parts := strings.Split(v, ",")
		if len(parts) == 4 {
			for i, part := range parts {
				if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
					meta.Bounds[i] = f
				}
			}
		}
	}

	if v, ok := values["years"]; ok && v != "" {
		for _, part := range strings.Split(v, ",") {
			if y, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				meta.Years = append(meta.Years, y)
			}
		}
		sort.Ints(meta.Years)
	}

	return meta
}
