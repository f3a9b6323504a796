package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/export"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Print the class breaks and legend of a metric for one year",
	Long: `Classify builds (or reads from --archive) the snapshot of --year and prints the
class breaks chosen for --metric, optionally narrowed to one city and some of
its districts.

Example:
  riskmap classify --metric vs30_mean --year 2025 --city istanbul --classes 7`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("metric", types.MetricRiskScore, "Metric to classify")
	classifyCmd.Flags().Int("year", 2025, "Snapshot year")
	classifyCmd.Flags().Int("classes", 0, "Number of classes (default classify.classes)")
	classifyCmd.Flags().String("city", "", "Restrict to one city")
	classifyCmd.Flags().StringSlice("district", nil, "Restrict to these districts of --city")
	classifyCmd.Flags().String("archive", "", "Read the snapshot from a SQLite archive")
	classifyCmd.Flags().Bool("json", false, "Print the result as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	flags := cmd.Flags()
	metric, _ := flags.GetString("metric")
	year, _ := flags.GetInt("year")
	classes, _ := flags.GetInt("classes")
	city, _ := flags.GetString("city")
	districts, _ := flags.GetStringSlice("district")
	archive, _ := flags.GetString("archive")
	asJSON, _ := flags.GetBool("json")
	if classes <= 0 {
		classes = viper.GetInt("classify.classes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var builder pipeline.SnapshotBuilder
	if archive != "" {
		r, err := export.OpenSQLiteReader(archive)
		if err != nil {
			return err
		}
		defer r.Close()
		builder = r
	} else {
		loader, closeMirror, err := newLoader(ctx, viper.GetViper())
		if err != nil {
			return err
		}
		defer closeMirror()
		b, err := newBuilder(viper.GetViper(), loader)
		if err != nil {
			return err
		}
		builder = b
	}

	snap, err := builder.Build(ctx, year)
	if err != nil {
		return err
	}
	res := snap.Breaks(metric, pipeline.Filter{City: city, Districts: districts}, classes)
	return printClassification(cmd.OutOrStdout(), year, res, asJSON)
}

func printClassification(out io.Writer, year int, res classify.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Year int `json:"year"`
			classify.Result
		}{year, res})
	}

	fmt.Fprintf(out, "Metric:  %s (%d)\n", res.Metric, year)
	fmt.Fprintf(out, "Values:  %d\n", res.Count)
	if len(res.Legend) == 0 {
		fmt.Fprintln(out, "No finite values to classify.")
		return nil
	}
	fmt.Fprintf(out, "Method:  %s\n", res.Method)
	fmt.Fprintf(out, "Breaks:  %v\n", res.Breaks)
	for _, item := range res.Legend {
		fmt.Fprintf(out, "  %d  %s  %s\n", item.Class+1, item.Color, item.Label)
	}
	return nil
}
