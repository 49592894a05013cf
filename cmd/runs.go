package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/readiness-cli/internal/export"
	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect assessment run history",
	Long:  "Commands for listing, viewing, exporting and releasing assessment runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assessment runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, "runs")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		methodology, _ := cmd.Flags().GetString("methodology")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			MethodologyVersion: methodology,
			Status:             model.RunStatus(status),
			Limit:              limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full assessment document of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, "runs")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		code, _ := cmd.Flags().GetString("country")
		if code != "" {
			cs := run.Score(strings.ToUpper(code))
			if cs == nil {
				return eris.Errorf("runs show: country %s not in run %s", code, run.ID)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cs)
		}
		return export.WriteJSON(os.Stdout, run, time.Now())
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a completed run as JSON, CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
		}

		st, err := initStore(ctx, "runs")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}
		if run.Status != model.RunStatusComplete {
			return eris.Errorf("runs export: run %s is %s", run.ID, run.Status)
		}
		return writeExportFile(out, format, run)
	},
}

// -- runs release --

var runsReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Mark orphaned running runs as failed",
	Long:  "A crashed assessment leaves its run in the running state, which blocks new runs for that methodology version. Release marks such runs failed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		methodology, _ := cmd.Flags().GetString("methodology")
		if methodology == "" {
			methodology = cfg.Engine.MethodologyVersion
		}
		if methodology == "" {
			return eris.New("runs release: --methodology is required")
		}

		st, err := initStore(ctx, "runs")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ReleaseRuns(ctx, methodology)
		if err != nil {
			return eris.Wrap(err, "runs release")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "released %d running run(s) for methodology %s\n", n, methodology)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("methodology", "", "filter by methodology version")
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().String("country", "", "show a single country's score (ISO alpha-2)")

	runsExportCmd.Flags().String("out", "", "output path (required)")
	runsExportCmd.Flags().String("format", "", "json, csv or xlsx (default: from --out extension)")
	_ = runsExportCmd.MarkFlagRequired("out")

	runsReleaseCmd.Flags().String("methodology", "", "methodology version to release (default from config)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsReleaseCmd)
	rootCmd.AddCommand(runsCmd)
}

// writeExportFile renders run in format to path.
func writeExportFile(path, format string, run *model.AssessmentRun) error {
	var write func(io.Writer) error
	switch format {
	case "json":
		write = func(w io.Writer) error { return export.WriteJSON(w, run, time.Now()) }
	case "csv":
		write = func(w io.Writer) error { return export.WriteCSV(w, run) }
	case "xlsx":
		write = func(w io.Writer) error { return export.WriteXLSX(w, run) }
	default:
		return eris.Errorf("export: unsupported format %q (json, csv, xlsx)", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMETHODOLOGY\tSTATUS\tREF_YEAR\tCOUNTRIES\tRECORDS\tREJECTED\tSTARTED\tCOMPLETED")
	_, _ = fmt.Fprintln(w, "--\t-----------\t------\t--------\t---------\t-------\t--------\t-------\t---------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.MethodologyVersion,
			r.Status,
			r.ReferenceYear,
			r.CountryCount,
			r.RecordCount,
			r.RejectionCount,
			r.StartedAt.Format("2006-01-02 15:04"),
			formatTime(r.CompletedAt),
		)
		if r.Error != "" {
			msg := r.Error
			if len(msg) > 60 {
				msg = msg[:57] + "..."
			}
			_, _ = fmt.Fprintf(w, "\terror: %s\t\t\t\t\t\t\t\n", msg)
		}
	}
	_ = w.Flush()
}
