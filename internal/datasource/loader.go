// Package datasource fetches boundary collections and risk tables, memoizes
// them by path, and degrades to empty results when a resource is missing.
package datasource

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/FatmaElik/risk-map/internal/metrics"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Config configures a Loader.
type Config struct {
	Transport Transport
	Resolver  Resolver
	// Mirror, when set, stores fetched bytes and serves them when the
	// transport fails.
	Mirror Mirror
	// Concurrency caps parallel fetches in FetchGeometryMany. Zero means
	// unlimited.
	Concurrency int
	// DedupeInFlight shares one fetch between concurrent callers of the same
	// path. Off by default: every caller fetches until the cache is filled.
	DedupeInFlight bool
	Logger         *slog.Logger
}

// Status reports loader activity since start.
type Status struct {
	ActiveFetches  int      `json:"active_fetches"`
	TotalCompleted int64    `json:"total_completed"`
	TotalFailed    int64    `json:"total_failed"`
	TotalBytes     int64    `json:"total_bytes"`
	MirrorHits     int64    `json:"mirror_hits"`
	CachedGeometry int      `json:"cached_geometry"`
	CachedTables   int      `json:"cached_tables"`
	CurrentPaths   []string `json:"current_paths"`
}

// Loader fetches and memoizes resources.
type Loader struct {
	cfg      Config
	log      *slog.Logger
	geometry *Cache[*geojson.FeatureCollection]
	tables   *Cache[[]types.Row]
	group    singleflight.Group

	activeFetches  atomic.Int32
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64
	totalBytes     atomic.Int64
	mirrorHits     atomic.Int64
	currentPaths   sync.Map // path -> struct{}
}

// NewLoader creates a loader with its own empty caches.
func NewLoader(cfg Config) *Loader {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loader{
		cfg:      cfg,
		log:      cfg.Logger,
		geometry: NewCache[*geojson.FeatureCollection](),
		tables:   NewCache[[]types.Row](),
	}
}

// FetchGeometry loads the collection at p. Features without a city get the
// one implied by the path. Results are cached by the literal path and must be
// treated as read-only. Any failure is logged and yields Empty.
func (l *Loader) FetchGeometry(ctx context.Context, p string) Result[*geojson.FeatureCollection] {
	if fc, ok := l.geometry.Get(p); ok {
		metrics.FetchesTotal.WithLabelValues("geometry", "cached").Inc()
		return Ok(fc)
	}

	fc, err := l.dedupe("geometry:"+p, func() (any, error) {
		return l.loadGeometry(ctx, p)
	})
	if err != nil {
		l.log.Warn("failed to load geometry", "path", p, "error", err)
		metrics.FetchesTotal.WithLabelValues("geometry", "failed").Inc()
		return Empty[*geojson.FeatureCollection]()
	}

	out := fc.(*geojson.FeatureCollection)
	l.geometry.Set(p, out)
	metrics.FetchesTotal.WithLabelValues("geometry", "ok").Inc()
	return Ok(out)
}

// FetchGeometryMany loads every path concurrently and concatenates the
// features of those that succeeded, in input order. It is Empty only when
// all paths failed.
func (l *Loader) FetchGeometryMany(ctx context.Context, paths []string) Result[*geojson.FeatureCollection] {
	results := make([]Result[*geojson.FeatureCollection], len(paths))

	var g errgroup.Group
	if l.cfg.Concurrency > 0 {
		g.SetLimit(l.cfg.Concurrency)
	}
	for i, p := range paths {
		g.Go(func() error {
			results[i] = l.FetchGeometry(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	merged := geojson.NewFeatureCollection()
	found := false
	for _, r := range results {
		fc, ok := r.Get()
		if !ok {
			continue
		}
		found = true
		merged.Features = append(merged.Features, fc.Features...)
	}
	if !found {
		return Empty[*geojson.FeatureCollection]()
	}
	return Ok(merged)
}

// FetchTable loads the delimited table at p. Failures are logged and yield
// an empty, non-nil slice; only successful parses are cached.
func (l *Loader) FetchTable(ctx context.Context, p string) []types.Row {
	if rows, ok := l.tables.Get(p); ok {
		metrics.FetchesTotal.WithLabelValues("table", "cached").Inc()
		return rows
	}

	v, err := l.dedupe("table:"+p, func() (any, error) {
		data, err := l.fetchBytes(ctx, p)
		if err != nil {
			return nil, err
		}
		return ParseTable(data)
	})
	if err != nil {
		l.log.Warn("failed to load table", "path", p, "error", err)
		metrics.FetchesTotal.WithLabelValues("table", "failed").Inc()
		return []types.Row{}
	}

	rows := v.([]types.Row)
	l.tables.Set(p, rows)
	metrics.FetchesTotal.WithLabelValues("table", "ok").Inc()
	return rows
}

// InvalidateCache drops every memoized resource, and the mirror's copies
// when one is configured.
func (l *Loader) InvalidateCache(ctx context.Context) error {
	l.geometry.Clear()
	l.tables.Clear()
	if l.cfg.Mirror == nil {
		return nil
	}
	if err := l.cfg.Mirror.Clear(ctx); err != nil {
		return eris.Wrap(err, "failed to clear mirror")
	}
	return nil
}

// Status returns the current activity counters.
func (l *Loader) Status() Status {
	current := []string{}
	l.currentPaths.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	sort.Strings(current)

	return Status{
		ActiveFetches:  int(l.activeFetches.Load()),
		TotalCompleted: l.totalCompleted.Load(),
		TotalFailed:    l.totalFailed.Load(),
		TotalBytes:     l.totalBytes.Load(),
		MirrorHits:     l.mirrorHits.Load(),
		CachedGeometry: l.geometry.Len(),
		CachedTables:   l.tables.Len(),
		CurrentPaths:   current,
	}
}

func (l *Loader) dedupe(key string, fn func() (any, error)) (any, error) {
	if !l.cfg.DedupeInFlight {
		return fn()
	}
	v, err, _ := l.group.Do(key, fn)
	return v, err
}

func (l *Loader) loadGeometry(ctx context.Context, p string) (*geojson.FeatureCollection, error) {
	var (
		fc  *geojson.FeatureCollection
		err error
	)
	if strings.HasSuffix(strings.ToLower(p), ".shp") {
		fc, err = l.loadShapefile(p)
	} else {
		var data []byte
		data, err = l.fetchBytes(ctx, p)
		if err == nil {
			fc, err = DecodeGeoJSON(data)
		}
	}
	if err != nil {
		return nil, err
	}

	if city := CityFromPath(p); city != "" {
		for _, f := range fc.Features {
			if f == nil {
				continue
			}
			if f.Properties == nil {
				f.Properties = geojson.Properties{}
			}
			if types.CityOf(f.Properties) == "" {
				f.Properties[types.FieldCity] = city
			}
		}
	}
	return fc, nil
}

func (l *Loader) loadShapefile(p string) (*geojson.FeatureCollection, error) {
	local, ok := l.cfg.Transport.(LocalTransport)
	if !ok {
		return nil, eris.Errorf("shapefile %s needs a directory source", p)
	}
	fsPath, err := local.LocalPath(l.cfg.Resolver.Resolve(p))
	if err != nil {
		return nil, err
	}
	return ReadShapefile(fsPath)
}

// fetchBytes reads p through the transport, mirroring successes and falling
// back to the mirror on failure.
func (l *Loader) fetchBytes(ctx context.Context, p string) ([]byte, error) {
	if l.cfg.Transport == nil {
		return nil, eris.New("no transport configured")
	}
	loc := l.cfg.Resolver.Resolve(p)

	l.activeFetches.Add(1)
	l.currentPaths.Store(p, struct{}{})
	defer func() {
		l.activeFetches.Add(-1)
		l.currentPaths.Delete(p)
	}()

	data, err := l.cfg.Transport.Fetch(ctx, loc)
	if err != nil {
		l.totalFailed.Add(1)
		if l.cfg.Mirror != nil {
			if b, ok := l.cfg.Mirror.Get(ctx, p); ok {
				l.mirrorHits.Add(1)
				l.log.Info("serving mirrored copy", "path", p, "error", err)
				return b, nil
			}
		}
		return nil, err
	}

	l.totalCompleted.Add(1)
	l.totalBytes.Add(int64(len(data)))
	metrics.FetchedBytesTotal.Add(float64(len(data)))
	l.log.Debug("fetched resource", "path", p, "location", loc, "bytes", len(data))

	if l.cfg.Mirror != nil {
		if err := l.cfg.Mirror.Put(ctx, p, data); err != nil {
			l.log.Warn("failed to mirror resource", "path", p, "error", err)
		}
	}
	return data, nil
}
