package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/export"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Show the metadata and per-year risk class counts of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")
		return inspectArchive(cmd.Context(), cmd.OutOrStdout(), args[0], lang)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("lang", "en", "Language of the risk class names (en, tr)")
}

func inspectArchive(ctx context.Context, out io.Writer, path, lang string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := export.OpenSQLiteReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	meta, err := r.Metadata()
	if err != nil {
		return err
	}
	years, err := r.Years()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Archive:     %s\n", path)
	fmt.Fprintf(out, "Name:        %s\n", meta.Name)
	if meta.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", meta.Description)
	}
	if meta.Attribution != "" {
		fmt.Fprintf(out, "Attribution: %s\n", meta.Attribution)
	}
	if meta.Version != "" {
		fmt.Fprintf(out, "Version:     %s\n", meta.Version)
	}
	b := meta.Bounds
	fmt.Fprintf(out, "Bounds:      %.6f,%.6f,%.6f,%.6f\n", b[0], b[1], b[2], b[3])

	yearStrs := make([]string, len(years))
	for i, y := range years {
		yearStrs[i] = fmt.Sprint(y)
	}
	fmt.Fprintf(out, "Years:       %s\n", strings.Join(yearStrs, ", "))
	if len(years) == 0 {
		return nil
	}

	labels := classify.RiskLabels(lang)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(out)
	fmt.Fprint(tw, "year\t")
	for _, l := range labels {
		fmt.Fprintf(tw, "%s\t", l)
	}
	fmt.Fprintln(tw, "total\t")

	for _, y := range years {
		counts, err := r.ClassCounts(ctx, y)
		if err != nil {
			return err
		}
		total := 0
		fmt.Fprintf(tw, "%d\t", y)
		for i := range labels {
			fmt.Fprintf(tw, "%d\t", counts[i])
			total += counts[i]
		}
		fmt.Fprintf(tw, "%d\t\n", total)
	}
	return tw.Flush()
}
