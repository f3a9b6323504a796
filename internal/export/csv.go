package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/join"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// utf8BOM lets spreadsheet tools detect the encoding of Turkish names.
const utf8BOM = "\ufeff"

// Column names appended after the metric columns.
const (
	ColumnClass      = "class"
	ColumnClassLabel = "class_label"
)

// CSVHeader returns the column order used by WriteCSV.
func CSVHeader() []string {
	header := []string{
		types.FieldID,
		types.FieldCity,
		types.FieldDistrict,
		types.FieldNeighborhood,
		types.FieldYear,
	}
	header = append(header, types.Metrics...)
	return append(header, ColumnClass, ColumnClassLabel)
}

// WriteCSV writes one line per feature with identity fields, every known
// metric, and the feature's class under res. Features without a finite value
// for res.Metric get empty class columns.
func WriteCSV(w io.Writer, features []*geojson.Feature, res classify.Result) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return eris.Wrap(err, "failed to write byte order mark")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return eris.Wrap(err, "failed to write header")
	}

	precision := classify.Precision(res.Breaks)
	for _, f := range features {
		if f == nil {
			continue
		}
		rec := join.NormalizeProperties(f.Properties)
		line := []string{rec.ID, rec.City, rec.District, rec.Neighborhood, formatYear(rec.Year)}
		for _, m := range types.Metrics {
			if v, ok := join.MetricValue(f.Properties, m); ok {
				line = append(line, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				line = append(line, "")
			}
		}

		class, label := "", ""
		if v, ok := join.MetricValue(f.Properties, res.Metric); ok {
			if idx := classify.ClassIndexOf(v, res.Breaks); idx >= 0 {
				class = strconv.Itoa(idx)
				label = classify.ClassLabel(idx, res.Breaks, precision)
			}
		}
		line = append(line, class, label)

		if err := cw.Write(line); err != nil {
			return eris.Wrapf(err, "failed to write feature %s", rec.ID)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "failed to flush csv")
	}
	return nil
}

// WriteCSVFile writes features to path, replacing any existing file.
func WriteCSVFile(path string, features []*geojson.Feature, res classify.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "failed to close %s", path)
		}
	}()
	return WriteCSV(f, features, res)
}

func formatYear(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}
