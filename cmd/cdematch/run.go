package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/usecase"
)

func newRunCommand(debug *bool) *cobra.Command {
	var opts inputOptions
	var limit int
	var workers int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match a dataset against a CDE dictionary",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, targets, err := opts.load()
			if err != nil {
				return err
			}
			configs, err := opts.ensemble()
			if err != nil {
				return err
			}

			pipeline := usecase.NewPipeline(nil, usecase.PipelineConfig{Workers: workers, Debug: *debug})
			report, err := pipeline.RunConfigs(cmd.Context(), sources, targets, configs)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printReport(cmd.OutOrStdout(), report, limit)
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows to show per match type (0 shows all)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent sources per strategy (0 uses one per CPU)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the full report as JSON")

	return cmd
}

func printReport(out io.Writer, report *domain.MatchReport, limit int) {
	colorize := shouldColorize(out)
	for _, kind := range domain.AllMatchTypes() {
		results, ok := report.ResultsByType[kind]
		if !ok {
			continue
		}
		fmt.Fprintln(out, sectionHeader(fmt.Sprintf("%s matches (%d)", kind, len(results)), colorize))
		if len(results) == 0 {
			fmt.Fprintln(out, "  none")
			fmt.Fprintln(out)
			continue
		}

		shown := results
		if limit > 0 && len(shown) > limit {
			shown = shown[:limit]
		}
		rows := make([][]string, 0, len(shown))
		for _, r := range shown {
			rows = append(rows, []string{
				r.Source,
				r.Target,
				strconv.FormatFloat(r.Confidence, 'f', 3, 64),
				method(r),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Variable", "CDE", "Confidence", "Method"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
		if len(shown) < len(results) {
			fmt.Fprintf(out, "  ... %d more\n", len(results)-len(shown))
		}
		fmt.Fprintln(out)
	}

	for _, f := range report.Failures {
		fmt.Fprintf(out, "strategy %d (%s) failed: %s\n", f.Index, f.Kind, f.Error)
	}
	fmt.Fprintf(out, "%d sources, %d targets, %d unique pairs\n",
		report.Summary.SourceCount, report.Summary.TargetCount, report.Summary.UniquePairs)
	fmt.Fprintf(out, "fingerprint: %s\n", report.ConfigFingerprint)
}

const (
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

func sectionHeader(title string, colorize bool) string {
	if colorize {
		return ansiBold + title + ansiReset
	}
	return title
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// method names how a result was found, from its metadata.
func method(r domain.MatchResult) string {
	if m, ok := r.Metadata["match_method"].(string); ok {
		return m
	}
	if a, ok := r.Metadata["algorithm"].(string); ok {
		return a
	}
	return string(r.MatchType)
}
