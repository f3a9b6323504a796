// Package server exposes snapshots over a JSON HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/datasource"
	"github.com/FatmaElik/risk-map/internal/metrics"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/viewport"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Loader is the resource loader behind the session. Archive-backed sessions
// have none.
type Loader interface {
	InvalidateCache(ctx context.Context) error
	Status() datasource.Status
}

// Config configures the API.
type Config struct {
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string
	// Classes is the class count when a request names none.
	Classes int
	// Padding is the fit padding in pixels when a request names none.
	Padding float64
	Logger  *slog.Logger
}

// Server serves the active snapshot of a session.
type Server struct {
	session *pipeline.Session
	loader  Loader
	cfg     Config
	logger  *slog.Logger
}

// New creates a server. loader may be nil.
func New(session *pipeline.Session, loader Loader, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Classes <= 0 {
		cfg.Classes = classify.DefaultClasses
	}
	if cfg.Padding <= 0 {
		cfg.Padding = viewport.DefaultPadding
	}
	return &Server{session: session, loader: loader, cfg: cfg, logger: cfg.Logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.observe)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Put("/year", s.handleSetYear)
		r.Post("/reload", s.handleReload)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSnapshot)
			r.Get("/features", s.handleFeatures)
			r.Get("/breaks", s.handleBreaks)
			r.Get("/bbox", s.handleBBox)
			r.Get("/view", s.handleView)
			r.Get("/points", s.handlePoints)
			r.Get("/districts", s.handleDistricts)
			r.Get("/boundaries/{kind}", s.handleBoundaries)
		})
	})

	return r
}

// observe logs each request and records its duration by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.RequestDurationMs.WithLabelValues(route, strconv.Itoa(status)).Observe(float64(elapsed.Milliseconds()))
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}
