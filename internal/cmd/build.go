package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/FatmaElik/risk-map/internal/export"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/FatmaElik/risk-map/internal/worker"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Output formats of the build command.
const (
	formatCSV    = "csv"
	formatSQLite = "sqlite"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build per-year snapshots and export them",
	Long: `Build joins the risk table of every requested year to the boundary layers
and exports the result.

  --format csv     writes one riskmap_<year>.csv per year into --output
  --format sqlite  writes all years into the SQLite archive at --output

Examples:
  riskmap build --years 2025,2026 --format csv --output ./export
  riskmap build --years 2020-2025 --format sqlite --output risk.sqlite`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("years", "", "Years to build, e.g. 2025,2026 or 2020-2025")
	buildCmd.Flags().String("format", formatCSV, "Output format: csv or sqlite")
	buildCmd.Flags().StringP("output", "o", "", "Output directory (csv) or archive file (sqlite)")
	buildCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	buildCmd.Flags().Bool("progress", true, "Show progress during the build")
	buildCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some years fail")
	buildCmd.Flags().String("metric", types.MetricRiskScore, "Metric the CSV class columns are computed for")
	buildCmd.Flags().String("name", "riskmap", "Archive name stored in the SQLite metadata")
	buildCmd.Flags().String("attribution", "", "Attribution stored in the SQLite metadata")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"build.years", "years"},
		{"build.format", "format"},
		{"build.output", "output"},
		{"build.workers", "workers"},
		{"build.progress", "progress"},
		{"build.allow_failures", "allow-failures"},
		{"build.metric", "metric"},
		{"build.name", "name"},
		{"build.attribution", "attribution"},
	}
	for _, bf := range bindFlags {
		mustBind(buildCmd, bf.key, bf.flag)
	}
}

type buildOptions struct {
	Years         []int
	Format        string
	Output        string
	Workers       int
	Progress      bool
	AllowFailures bool
	Metric        string
	Classes       int
	Metadata      export.Metadata
}

func runBuild(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	v := viper.GetViper()
	years, err := parseYears(v.GetString("build.years"))
	if err != nil {
		return eris.Wrap(err, "--years")
	}

	opts := buildOptions{
		Years:         years,
		Format:        v.GetString("build.format"),
		Output:        v.GetString("build.output"),
		Workers:       v.GetInt("build.workers"),
		Progress:      v.GetBool("build.progress"),
		AllowFailures: v.GetBool("build.allow_failures"),
		Metric:        v.GetString("build.metric"),
		Classes:       v.GetInt("classify.classes"),
		Metadata: export.Metadata{
			Name:        v.GetString("build.name"),
			Description: "Neighborhood earthquake risk snapshots",
			Attribution: v.GetString("build.attribution"),
			Version:     "1",
		},
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, closeMirror, err := newLoader(ctx, v)
	if err != nil {
		return err
	}
	defer closeMirror()

	builder, err := newBuilder(v, loader)
	if err != nil {
		return err
	}

	return executeBuild(ctx, builder, opts)
}

// executeBuild runs the worker pool over opts.Years and exports each
// snapshot as it completes.
func executeBuild(ctx context.Context, builder pipeline.SnapshotBuilder, opts buildOptions) error {
	var (
		sink   func(*pipeline.Snapshot) error
		finish func() error
	)
	switch opts.Format {
	case formatCSV:
		dir := opts.Output
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "failed to create output directory %s", dir)
		}
		sink = func(snap *pipeline.Snapshot) error {
			return writeSnapshotCSV(dir, snap, opts.Metric, opts.Classes)
		}
		finish = func() error { return nil }
	case formatSQLite:
		path := opts.Output
		if path == "" {
			path = "riskmap.sqlite"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return eris.Wrapf(err, "failed to create output directory %s", dir)
			}
		}
		w, err := export.NewSQLiteWriter(path, opts.Metadata)
		if err != nil {
			return err
		}
		sink = w.WriteSnapshot
		finish = w.Close
	default:
		return eris.Errorf("invalid format %q: must be '%s' or '%s'", opts.Format, formatCSV, formatSQLite)
	}

	tasks := worker.YearTasks(opts.Years)
	progress := worker.NewProgress(len(tasks), opts.Progress)

	var exportErrs []error
	pool := worker.New(worker.Config{
		Workers: opts.Workers,
		Builder: builder,
		OnResult: func(r worker.Result) {
			progress.Observe(r)
			if r.Err != nil {
				return
			}
			if err := sink(r.Snapshot); err != nil {
				exportErrs = append(exportErrs, eris.Wrapf(err, "export %d", r.Task.Year))
			}
		},
	})

	logger.Info("Building snapshots", "years", opts.Years, "format", opts.Format, "workers", opts.Workers)
	results := pool.Run(ctx, tasks)

	closeErr := finish()

	var failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			logger.Error("Snapshot build failed", "year", r.Task.Year, "error", r.Err)
		case r.Snapshot != nil:
			logger.Info("Snapshot built",
				"year", r.Task.Year,
				"features", len(r.Snapshot.Features.Features),
				"rows", len(r.Snapshot.Rows),
				"matched", r.Snapshot.Stats.Matched,
				"elapsed", r.Elapsed)
		}
	}
	logger.Info(progress.Summary())

	for _, err := range exportErrs {
		logger.Error("Export failed", "error", err)
	}
	if len(exportErrs) > 0 {
		return exportErrs[0]
	}
	if closeErr != nil {
		return closeErr
	}
	if failed > 0 && !opts.AllowFailures {
		return eris.Errorf("%d of %d years failed", failed, len(results))
	}
	return nil
}

func writeSnapshotCSV(dir string, snap *pipeline.Snapshot, metric string, classes int) error {
	res := snap.Breaks(metric, pipeline.Filter{}, classes)
	path := filepath.Join(dir, fmt.Sprintf("riskmap_%d.csv", snap.Year))
	if err := export.WriteCSVFile(path, snap.Features.Features, res); err != nil {
		return err
	}
	logger.Debug("CSV written", "path", path, "method", res.Method, "breaks", res.Breaks)
	return nil
}
