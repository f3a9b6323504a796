package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/datasource"
	"github.com/FatmaElik/risk-map/internal/export"
	"github.com/FatmaElik/risk-map/internal/join"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/FatmaElik/risk-map/internal/viewport"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
)

type snapshotKey struct{}

// requireSnapshot rejects requests while no snapshot is active, and requests
// naming a year other than the active one.
func (s *Server) requireSnapshot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.session.Current()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no snapshot loaded")
			return
		}
		if v := r.URL.Query().Get("year"); v != "" {
			year, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid year "+strconv.Quote(v))
				return
			}
			if year != snap.Year {
				writeError(w, http.StatusConflict, fmt.Sprintf("year %d is not active (active: %d)", year, snap.Year))
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), snapshotKey{}, snap)))
	})
}

func snapshotFrom(r *http.Request) *pipeline.Snapshot {
	snap, _ := r.Context().Value(snapshotKey{}).(*pipeline.Snapshot)
	return snap
}

// filterFrom reads city and district parameters. "all" means every city;
// districts may repeat or be comma-separated.
func filterFrom(r *http.Request) pipeline.Filter {
	q := r.URL.Query()
	f := pipeline.Filter{City: strings.TrimSpace(q.Get("city"))}
	if strings.EqualFold(f.City, "all") {
		f.City = ""
	}
	for _, v := range q["district"] {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				f.Districts = append(f.Districts, d)
			}
		}
	}
	return f
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	writeGeoJSON(w, snapshotFrom(r).Collection(filterFrom(r)))
}

type breaksResponse struct {
	Year int `json:"year"`
	classify.Result
}

func (s *Server) handleBreaks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric := q.Get("metric")
	if metric == "" {
		metric = types.MetricRiskScore
	}
	classes := s.cfg.Classes
	if v := q.Get("classes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "classes must be between 1 and 12")
			return
		}
		classes = n
	}

	snap := snapshotFrom(r)
	writeJSON(w, http.StatusOK, breaksResponse{
		Year:   snap.Year,
		Result: snap.Breaks(metric, filterFrom(r), classes),
	})
}

type bboxResponse struct {
	BBox     [4]float64            `json:"bbox"`
	Fallback bool                  `json:"fallback"`
	Cities   map[string][4]float64 `json:"cities"`
}

func toBBoxResponse(frame pipeline.Frame) bboxResponse {
	resp := bboxResponse{
		BBox:     frame.BBox.Array(),
		Fallback: frame.Fallback,
		Cities:   make(map[string][4]float64, len(frame.Cities)),
	}
	for city, b := range frame.Cities {
		resp.Cities[city] = b.Array()
	}
	return resp
}

func (s *Server) handleBBox(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toBBoxResponse(snapshotFrom(r).Frame(filterFrom(r))))
}

type viewResponse struct {
	Camera   viewport.Camera `json:"camera"`
	Hash     string          `json:"hash"`
	Tile     string          `json:"tile"`
	BBox     [4]float64      `json:"bbox"`
	Fallback bool            `json:"fallback"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width, errW := strconv.Atoi(q.Get("width"))
	height, errH := strconv.Atoi(q.Get("height"))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		writeError(w, http.StatusBadRequest, "width and height must be positive integers")
		return
	}
	padding := s.cfg.Padding
	if v := q.Get("padding"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 {
			writeError(w, http.StatusBadRequest, "invalid padding")
			return
		}
		padding = p
	}

	frame := snapshotFrom(r).Frame(filterFrom(r))
	cam, ok := viewport.Fit(frame.BBox, width, height, viewport.Options{Padding: padding})
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "bounding box does not fit the viewport")
		return
	}
	t := cam.CenterTile()
	writeJSON(w, http.StatusOK, viewResponse{
		Camera:   cam,
		Hash:     cam.String(),
		Tile:     fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y),
		BBox:     frame.BBox.Array(),
		Fallback: frame.Fallback,
	})
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotFrom(r).Points(filterFrom(r)))
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	city := filterFrom(r).City
	writeJSON(w, http.StatusOK, map[string]any{
		"city":      city,
		"districts": snapshotFrom(r).AvailableDistricts(city),
	})
}

func (s *Server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	fc, ok := snapshotFrom(r).Boundary(kind, filterFrom(r).City)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown boundary kind "+strconv.Quote(kind))
		return
	}
	writeGeoJSON(w, fc)
}

type statusResponse struct {
	Loaded     bool               `json:"loaded"`
	Year       int                `json:"year,omitempty"`
	SnapshotID string             `json:"snapshot_id,omitempty"`
	BuiltAt    *time.Time         `json:"built_at,omitempty"`
	Stats      *join.Stats        `json:"stats,omitempty"`
	Cities     []string           `json:"cities,omitempty"`
	Loader     *datasource.Status `json:"loader,omitempty"`
}

func (s *Server) status() statusResponse {
	var resp statusResponse
	if snap, ok := s.session.Current(); ok {
		builtAt, stats := snap.BuiltAt, snap.Stats
		resp = statusResponse{
			Loaded:     true,
			Year:       snap.Year,
			SnapshotID: snap.ID,
			BuiltAt:    &builtAt,
			Stats:      &stats,
			Cities:     snap.Cities(),
		}
	}
	if s.loader != nil {
		st := s.loader.Status()
		resp.Loader = &st
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

type yearRequest struct {
	Year int `json:"year"`
}

func (s *Server) handleSetYear(w http.ResponseWriter, r *http.Request) {
	var req yearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Year <= 0 {
		writeError(w, http.StatusBadRequest, `body must be {"year": <year>}`)
		return
	}
	s.load(w, r, req.Year)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.session.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot loaded")
		return
	}
	if s.loader != nil {
		if err := s.loader.InvalidateCache(r.Context()); err != nil {
			s.logger.Warn("cache invalidation incomplete", "error", err)
		}
	}
	s.load(w, r, snap.Year)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request, year int) {
	_, err := s.session.Load(r.Context(), year)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.status())
	case errors.Is(err, pipeline.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded by a newer load")
	case errors.Is(err, export.ErrYearNotArchived):
		writeError(w, http.StatusNotFound, fmt.Sprintf("year %d is not archived", year))
	default:
		s.logger.Error("load failed", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "load failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	data, err := datasource.EncodeGeoJSON(fc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
