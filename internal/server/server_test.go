package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/FatmaElik/risk-map/internal/datasource"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func neighborhood(city, district, id string, score float64, poly orb.Polygon) *geojson.Feature {
	f := geojson.NewFeature(poly)
	f.Properties["city"] = city
	f.Properties["ilce_adi"] = district
	f.Properties["mahalle_adi"] = "n" + id
	f.Properties["mah_id"] = id
	f.Properties["risk_score"] = score
	return f
}

// stubBuilder returns a fixed two-city snapshot for any year, and fails for
// negative years.
type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, year int) (*pipeline.Snapshot, error) {
	if year < 0 {
		return nil, eris.New("bad year")
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(neighborhood("ankara", "Çankaya", "1", 0.1, square(32.8, 39.9, 0.1)))
	fc.Append(neighborhood("ankara", "Keçiören", "2", 0.5, square(32.9, 40.0, 0.1)))
	fc.Append(neighborhood("istanbul", "Kadıköy", "3", 0.9, square(29.0, 40.9, 0.1)))

	districts := geojson.NewFeatureCollection()
	d := geojson.NewFeature(square(32.7, 39.8, 0.4))
	d.Properties["city"] = "ankara"
	districts.Append(d)

	return &pipeline.Snapshot{
		ID:        "test",
		Year:      year,
		Features:  fc,
		Rows:      []types.Row{},
		Districts: districts,
		Provinces: geojson.NewFeatureCollection(),
		Fallback:  types.TurkeyBounds,
	}, nil
}

type stubLoader struct {
	invalidations atomic.Int32
}

func (l *stubLoader) InvalidateCache(context.Context) error {
	l.invalidations.Add(1)
	return nil
}

func (l *stubLoader) Status() datasource.Status {
	return datasource.Status{TotalCompleted: 7}
}

func newTestServer(t *testing.T, load bool) (*httptest.Server, *stubLoader) {
	t.Helper()
	session := pipeline.NewSession(stubBuilder{}, nil)
	if load {
		_, err := session.Load(context.Background(), 2025)
		require.NoError(t, err)
	}
	loader := &stubLoader{}
	ts := httptest.NewServer(New(session, loader, Config{}).Handler())
	t.Cleanup(ts.Close)
	return ts, loader
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, data := do(t, http.MethodGet, url, "")
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(data, v), string(data))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, false)
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestRequiresSnapshot(t *testing.T) {
	ts, _ := newTestServer(t, false)
	resp := getJSON(t, ts.URL+"/api/features", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var st statusResponse
	resp = getJSON(t, ts.URL+"/api/status", &st)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, st.Loaded)
	require.NotNil(t, st.Loader)
	assert.Equal(t, int64(7), st.Loader.TotalCompleted)
}

func TestFeatures(t *testing.T) {
	ts, _ := newTestServer(t, true)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/features?city=ANKARA", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	_, body = do(t, http.MethodGet, ts.URL+"/api/features?city=all&district=cankaya,kadikoy", "")
	fc, err = geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestYearMismatch(t *testing.T) {
	ts, _ := newTestServer(t, true)

	resp := getJSON(t, ts.URL+"/api/features?year=2025", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = getJSON(t, ts.URL+"/api/features?year=2024", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = getJSON(t, ts.URL+"/api/features?year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBreaks(t *testing.T) {
	ts, _ := newTestServer(t, true)

	var got struct {
		Year    int       `json:"year"`
		Metric  string    `json:"metric"`
		Method  string    `json:"method"`
		Classes int       `json:"classes"`
		Count   int       `json:"count"`
		Breaks  []float64 `json:"breaks"`
		Palette []string  `json:"palette"`
	}
	resp := getJSON(t, ts.URL+"/api/breaks?classes=3", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, types.MetricRiskScore, got.Metric)
	assert.Equal(t, "quantile", got.Method)
	assert.Equal(t, 3, got.Classes)
	assert.Equal(t, 3, got.Count)
	require.Len(t, got.Breaks, 4)
	assert.Equal(t, 0.1, got.Breaks[0])
	assert.Equal(t, 0.9, got.Breaks[3])
	assert.Len(t, got.Palette, 3)

	resp = getJSON(t, ts.URL+"/api/breaks?classes=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBBoxAndView(t *testing.T) {
	ts, _ := newTestServer(t, true)

	var box bboxResponse
	resp := getJSON(t, ts.URL+"/api/bbox?city=istanbul", &box)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, box.Fallback)
	assert.InDeltaSlice(t, []float64{29.0, 40.9, 29.1, 41.0}, box.BBox[:], 1e-9)
	assert.Len(t, box.Cities, 2)

	resp = getJSON(t, ts.URL+"/api/bbox?city=izmir", &box)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, box.Fallback)
	assert.Equal(t, types.TurkeyBounds.Array(), box.BBox)

	var view viewResponse
	resp = getJSON(t, ts.URL+"/api/view?city=ankara&width=800&height=600", &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 32.9, view.Camera.Lon, 1e-6)
	assert.Greater(t, view.Camera.Zoom, 8.0)
	assert.NotEmpty(t, view.Tile)

	resp = getJSON(t, ts.URL+"/api/view?width=0&height=600", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPointsAndDistricts(t *testing.T) {
	ts, _ := newTestServer(t, true)

	var points []types.PointSample
	resp := getJSON(t, ts.URL+"/api/points?city=ankara", &points)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, points, 2)
	assert.Equal(t, 0.1, points[0].Metrics[types.MetricRiskScore])

	var districts struct {
		City      string   `json:"city"`
		Districts []string `json:"districts"`
	}
	resp = getJSON(t, ts.URL+"/api/districts?city=ankara", &districts)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Çankaya", "Keçiören"}, districts.Districts)
}

func TestBoundaries(t *testing.T) {
	ts, _ := newTestServer(t, true)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/boundaries/districts?city=ankara", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/boundaries/rivers", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetYearAndReload(t *testing.T) {
	ts, loader := newTestServer(t, true)

	resp, body := do(t, http.MethodPut, ts.URL+"/api/year", `{"year": 2026}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var st statusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2026, st.Year)
	assert.Equal(t, []string{"ankara", "istanbul"}, st.Cities)

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/year", `{"year": -5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, ts.URL+"/api/year", `nope`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, ts.URL+"/api/reload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, int32(1), loader.invalidations.Load())
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2026, st.Year)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, true)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/year", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, true)
	getJSON(t, ts.URL+"/api/status", nil)

	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "riskmap_request_duration_ms")
}
