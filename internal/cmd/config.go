package cmd

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/datasource"
	"github.com/FatmaElik/risk-map/internal/join"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	layout := pipeline.DefaultLayout()
	v.SetDefault("data.neighborhoods", layout.Neighborhoods)
	v.SetDefault("data.legacy_neighborhoods", layout.LegacyNeighborhoods)
	v.SetDefault("data.districts", layout.Districts)
	v.SetDefault("data.provinces", layout.Provinces)
	v.SetDefault("data.table_pattern", layout.TablePattern)

	v.SetDefault("map.fallback_bbox", "")
	v.SetDefault("classify.classes", classify.DefaultClasses)
	v.SetDefault("log.level", "info")

	v.SetDefault("fetch.timeout", time.Duration(0))
	v.SetDefault("fetch.rate_limit", 0.0)
	v.SetDefault("fetch.concurrency", 0)
	v.SetDefault("fetch.dedupe_inflight", false)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "riskmap:resource:")
}

func layoutFrom(v *viper.Viper) pipeline.Layout {
	return pipeline.Layout{
		Neighborhoods:       v.GetStringSlice("data.neighborhoods"),
		LegacyNeighborhoods: v.GetStringSlice("data.legacy_neighborhoods"),
		Districts:           v.GetStringSlice("data.districts"),
		Provinces:           v.GetStringSlice("data.provinces"),
		TablePattern:        v.GetString("data.table_pattern"),
	}
}

// fallbackFrom reads map.fallback_bbox. Empty means the whole of Turkey.
func fallbackFrom(v *viper.Viper) (types.BoundingBox, error) {
	raw := strings.TrimSpace(v.GetString("map.fallback_bbox"))
	if raw == "" {
		return types.TurkeyBounds, nil
	}
	return parseBBox(raw)
}

// newLoader builds the resource loader for data.source. The returned func
// releases the Redis mirror when one is configured.
func newLoader(ctx context.Context, v *viper.Viper) (*datasource.Loader, func(), error) {
	source := v.GetString("data.source")
	cfg := datasource.Config{
		Concurrency:    v.GetInt("fetch.concurrency"),
		DedupeInFlight: v.GetBool("fetch.dedupe_inflight"),
		Logger:         logger,
	}

	if datasource.IsAbsoluteURL(source) {
		cfg.Transport = datasource.NewHTTPTransport(datasource.HTTPOptions{
			Timeout:   v.GetDuration("fetch.timeout"),
			RateLimit: v.GetFloat64("fetch.rate_limit"),
		})
		cfg.Resolver = datasource.Resolver{Origin: source, BasePath: v.GetString("data.base_path")}
	} else {
		if source == "" {
			source = "."
		}
		cfg.Transport = datasource.NewDirTransport(source)
		cfg.Resolver = datasource.Resolver{BasePath: v.GetString("data.base_path")}
	}

	closer := func() {}
	if addr := v.GetString("cache.redis_addr"); addr != "" {
		mirror := datasource.OpenRedisMirror(addr, v.GetString("cache.redis_password"), v.GetInt("cache.redis_db"), v.GetString("cache.redis_prefix"))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := mirror.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = mirror.Close()
			return nil, nil, eris.Wrapf(err, "redis mirror at %s", addr)
		}
		cfg.Mirror = mirror
		closer = func() { _ = mirror.Close() }
		logger.Info("redis mirror enabled", "addr", addr)
	}

	return datasource.NewLoader(cfg), closer, nil
}

// newBuilder wires a snapshot builder onto loader using the configured
// layout and fallback box.
func newBuilder(v *viper.Viper, loader *datasource.Loader) (*pipeline.Builder, error) {
	fallback, err := fallbackFrom(v)
	if err != nil {
		return nil, eris.Wrap(err, "invalid map.fallback_bbox")
	}
	opts := join.DefaultOptions()
	opts.Logger = logger
	return pipeline.NewBuilder(loader, layoutFrom(v), pipeline.BuilderOptions{
		Join:     opts,
		Fallback: fallback,
		Logger:   logger,
	}), nil
}

// parseBBox parses "minLon,minLat,maxLon,maxLat". Unlike raw boxes read
// from data files, the order is taken as given.
func parseBBox(s string) (types.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.BoundingBox{}, eris.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var raw [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return types.BoundingBox{}, eris.Wrapf(err, "invalid number at position %d", i)
		}
		raw[i] = val
	}

	b := types.NewBoundingBox(raw)
	if b.MinLon >= b.MaxLon {
		return types.BoundingBox{}, eris.Errorf("minLon (%.4f) must be < maxLon (%.4f)", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return types.BoundingBox{}, eris.Errorf("minLat (%.4f) must be < maxLat (%.4f)", b.MinLat, b.MaxLat)
	}
	if !b.Valid() {
		return types.BoundingBox{}, eris.Errorf("%q lies outside world bounds", s)
	}
	return b, nil
}

// parseYears parses a year list such as "2024,2025" or "2020-2023,2025".
// The result is sorted and free of duplicates.
func parseYears(s string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, eris.Errorf("invalid year %q", part)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, eris.Errorf("invalid year range %q", part)
			}
		}
		if from <= 0 || to < from {
			return nil, eris.Errorf("invalid year range %q", part)
		}
		for y := from; y <= to; y++ {
			seen[y] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, eris.New("no years given")
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}
