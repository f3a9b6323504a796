// Package pipeline turns a year's risk table and boundary layers into an
// immutable Snapshot, and guards the active snapshot against stale loads.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/FatmaElik/risk-map/internal/datasource"
	"github.com/FatmaElik/risk-map/internal/join"
	"github.com/FatmaElik/risk-map/internal/metrics"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Source fetches boundary layers and risk tables.
type Source interface {
	FetchGeometryMany(ctx context.Context, paths []string) datasource.Result[*geojson.FeatureCollection]
	FetchTable(ctx context.Context, path string) []types.Row
}

// BuilderOptions tunes a Builder.
type BuilderOptions struct {
	Join     join.Options
	Fallback types.BoundingBox
	Logger   *slog.Logger
}

// Builder assembles snapshots.
type Builder struct {
	src      Source
	layout   Layout
	join     join.Options
	fallback types.BoundingBox
	logger   *slog.Logger
}

// NewBuilder creates a builder reading layout through src. A zero fallback
// box means the whole of Turkey.
func NewBuilder(src Source, layout Layout, opts BuilderOptions) *Builder {
	if !opts.Fallback.Valid() {
		opts.Fallback = types.TurkeyBounds
	}
	return &Builder{
		src:      src,
		layout:   layout,
		join:     opts.Join,
		fallback: opts.Fallback,
		logger:   opts.Logger,
	}
}

func (b *Builder) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

// Build fetches the table and all boundary layers concurrently, then joins
// the table into the neighborhoods. Missing resources shrink the snapshot
// instead of failing it; the only error is a cancelled context.
func (b *Builder) Build(ctx context.Context, year int) (*Snapshot, error) {
	start := time.Now()

	var (
		rows          []types.Row
		neighborhoods datasource.Result[*geojson.FeatureCollection]
		districts     datasource.Result[*geojson.FeatureCollection]
		provinces     datasource.Result[*geojson.FeatureCollection]
	)

	var g errgroup.Group
	g.Go(func() error {
		rows = b.src.FetchTable(ctx, b.layout.TablePath(year))
		return nil
	})
	g.Go(func() error {
		neighborhoods = b.src.FetchGeometryMany(ctx, b.layout.Neighborhoods)
		if neighborhoods.IsEmpty() && len(b.layout.LegacyNeighborhoods) > 0 {
			b.log().Info("neighborhood boundaries unavailable, using legacy layer", "year", year)
			neighborhoods = b.src.FetchGeometryMany(ctx, b.layout.LegacyNeighborhoods)
		}
		return nil
	})
	g.Go(func() error {
		districts = b.src.FetchGeometryMany(ctx, b.layout.Districts)
		return nil
	})
	g.Go(func() error {
		provinces = b.src.FetchGeometryMany(ctx, b.layout.Provinces)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "build snapshot for %d", year)
	}

	opts := b.join
	if opts.Logger == nil {
		opts.Logger = b.log()
	}
	joined, stats := join.JoinRowsToFeatures(neighborhoods.OrElse(geojson.NewFeatureCollection()), rows, opts)

	snap := &Snapshot{
		ID:        uuid.NewString(),
		Year:      year,
		BuiltAt:   time.Now().UTC(),
		Features:  joined,
		Rows:      rows,
		Districts: districts.OrElse(geojson.NewFeatureCollection()),
		Provinces: provinces.OrElse(geojson.NewFeatureCollection()),
		Stats:     stats,
		Fallback:  b.fallback,
	}

	elapsed := time.Since(start)
	metrics.LoadDurationMs.Observe(float64(elapsed.Milliseconds()))
	b.log().Info("built snapshot",
		"year", year,
		"id", snap.ID,
		"features", stats.Features,
		"rows", stats.Rows,
		"matched", stats.Matched,
		"districts", len(snap.Districts.Features),
		"provinces", len(snap.Provinces.Features),
		"duration", elapsed)

	return snap, nil
}
