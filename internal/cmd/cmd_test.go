package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/export"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	os.Exit(m.Run())
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.BoundingBox
		wantErr bool
	}{
		{
			name:  "valid bbox",
			input: "28.5,40.8,29.5,41.3",
			want:  types.BoundingBox{MinLon: 28.5, MinLat: 40.8, MaxLon: 29.5, MaxLat: 41.3},
		},
		{
			name:  "valid bbox with spaces",
			input: "32.5, 39.7, 33.1, 40.1",
			want:  types.BoundingBox{MinLon: 32.5, MinLat: 39.7, MaxLon: 33.1, MaxLat: 40.1},
		},
		{
			name:  "negative coordinates",
			input: "-122.5,37.7,-122.3,37.9",
			want:  types.BoundingBox{MinLon: -122.5, MinLat: 37.7, MaxLon: -122.3, MaxLat: 37.9},
		},
		{name: "too few values", input: "28.5,40.8,29.5", wantErr: true},
		{name: "too many values", input: "28.5,40.8,29.5,41.3,1", wantErr: true},
		{name: "invalid number", input: "abc,40.8,29.5,41.3", wantErr: true},
		{name: "minLon >= maxLon", input: "29.6,40.8,29.5,41.3", wantErr: true},
		{name: "minLat >= maxLat", input: "28.5,41.4,29.5,41.3", wantErr: true},
		{name: "outside world", input: "170,10,190,20", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseYears(t *testing.T) {
	tests := []struct {
		input   string
		want    []int
		wantErr bool
	}{
		{input: "2025", want: []int{2025}},
		{input: "2026, 2025,2025", want: []int{2025, 2026}},
		{input: "2020-2022,2025", want: []int{2020, 2021, 2022, 2025}},
		{input: "2022-2020", wantErr: true},
		{input: "twenty", wantErr: true},
		{input: " , ", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseYears(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel(true, "error"))
	assert.Equal(t, slog.LevelDebug, logLevel(false, "DEBUG"))
	assert.Equal(t, slog.LevelWarn, logLevel(false, "warning"))
	assert.Equal(t, slog.LevelError, logLevel(false, "error"))
	assert.Equal(t, slog.LevelInfo, logLevel(false, ""))
}

func TestLayoutAndFallbackFromConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	layout := layoutFrom(v)
	assert.Equal(t, pipeline.DefaultLayout(), layout)
	assert.Equal(t, "/data/risk/2025.csv", layout.TablePath(2025))

	fb, err := fallbackFrom(v)
	require.NoError(t, err)
	assert.Equal(t, types.TurkeyBounds, fb)

	v.Set("map.fallback_bbox", "28,40,30,42")
	fb, err = fallbackFrom(v)
	require.NoError(t, err)
	assert.Equal(t, types.BoundingBox{MinLon: 28, MinLat: 40, MaxLon: 30, MaxLat: 42}, fb)

	v.Set("map.fallback_bbox", "nope")
	_, err = fallbackFrom(v)
	assert.Error(t, err)
}

func TestNewLoaderFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "risk"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "risk", "2025.csv"),
		[]byte("mah_id,city,risk_score\n1,ankara,0.2\n"), 0o644))

	v := viper.New()
	setDefaults(v)
	v.Set("data.source", dir)

	loader, closer, err := newLoader(context.Background(), v)
	require.NoError(t, err)
	defer closer()

	rows := loader.FetchTable(context.Background(), "/data/risk/2025.csv")
	require.Len(t, rows, 1)
	assert.Equal(t, "ankara", rows[0]["city"])
}

// yearBuilder builds a small Ankara snapshot for any year and fails for
// years listed in fail.
type yearBuilder struct {
	fail map[int]bool
}

func (b yearBuilder) Build(_ context.Context, year int) (*pipeline.Snapshot, error) {
	if b.fail[year] {
		return nil, eris.Errorf("no data for %d", year)
	}
	fc := geojson.NewFeatureCollection()
	for i, score := range []float64{0.1, 0.2, 0.25, 0.35, 0.6} {
		x := 32.5 + float64(i)*0.1
		f := geojson.NewFeature(orb.Polygon{{{x, 39.8}, {x + 0.1, 39.8}, {x + 0.1, 39.9}, {x, 39.9}, {x, 39.8}}})
		f.Properties["mah_id"] = string(rune('a' + i))
		f.Properties["city"] = "ankara"
		f.Properties["ilce_adi"] = "Çankaya"
		f.Properties["mahalle_adi"] = "Mahalle " + string(rune('A'+i))
		f.Properties["year"] = year
		f.Properties["risk_score"] = score
		fc.Append(f)
	}
	return &pipeline.Snapshot{
		ID:        "snap",
		Year:      year,
		BuiltAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Features:  fc,
		Rows:      []types.Row{},
		Districts: geojson.NewFeatureCollection(),
		Provinces: geojson.NewFeatureCollection(),
		Fallback:  types.TurkeyBounds,
	}, nil
}

func TestExecuteBuildCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	err := executeBuild(context.Background(), yearBuilder{}, buildOptions{
		Years:   []int{2024, 2025},
		Format:  formatCSV,
		Output:  dir,
		Workers: 2,
		Metric:  types.MetricRiskScore,
		Classes: 3,
	})
	require.NoError(t, err)

	for _, year := range []string{"2024", "2025"} {
		data, err := os.ReadFile(filepath.Join(dir, "riskmap_"+year+".csv"))
		require.NoError(t, err)
		records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 6)
		assert.Equal(t, export.CSVHeader(), records[0])
		assert.Equal(t, year, records[1][4])
	}
}

func TestExecuteBuildSQLiteAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive", "risk.sqlite")
	err := executeBuild(context.Background(), yearBuilder{}, buildOptions{
		Years:    []int{2025, 2024},
		Format:   formatSQLite,
		Output:   path,
		Workers:  2,
		Metric:   types.MetricRiskScore,
		Classes:  5,
		Metadata: export.Metadata{Name: "test archive"},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, inspectArchive(context.Background(), &out, path, "en"))
	text := out.String()
	assert.Contains(t, text, "Name:        test archive")
	assert.Contains(t, text, "Years:       2024, 2025")
	assert.Contains(t, text, "Very High")

	// one feature per fixed-scale class: 0.1, 0.2, 0.25, 0.35, 0.6
	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := strings.Fields(lines[len(lines)-1])
	assert.Equal(t, []string{"2025", "1", "1", "1", "1", "1", "5"}, last)
}

func TestExecuteBuildFailures(t *testing.T) {
	dir := t.TempDir()
	opts := buildOptions{
		Years:   []int{2024, 2025},
		Format:  formatCSV,
		Output:  dir,
		Workers: 1,
		Metric:  types.MetricRiskScore,
		Classes: 5,
	}
	b := yearBuilder{fail: map[int]bool{2024: true}}

	err := executeBuild(context.Background(), b, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 years failed")
	assert.FileExists(t, filepath.Join(dir, "riskmap_2025.csv"))

	opts.AllowFailures = true
	assert.NoError(t, executeBuild(context.Background(), b, opts))

	opts.Format = "parquet"
	assert.Error(t, executeBuild(context.Background(), b, opts))
}

func TestPrintClassification(t *testing.T) {
	res := classify.Classify(types.MetricRiskScore, []float64{0.1, 0.2, 0.3, 0.4}, 2)

	var out bytes.Buffer
	require.NoError(t, printClassification(&out, 2025, res, false))
	assert.Contains(t, out.String(), "Metric:  risk_score (2025)")
	assert.Contains(t, out.String(), "Method:  quantile")
	assert.Contains(t, out.String(), "<= 0.25")

	out.Reset()
	require.NoError(t, printClassification(&out, 2025, res, true))
	assert.Contains(t, out.String(), `"year": 2025`)
	assert.Contains(t, out.String(), `"method": "quantile"`)

	out.Reset()
	empty := classify.Classify(types.MetricVS30, nil, 5)
	require.NoError(t, printClassification(&out, 2025, empty, false))
	assert.Contains(t, out.String(), "No finite values")
}
