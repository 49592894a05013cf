package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-cli/internal/assess"
	"github.com/sells-group/readiness-cli/internal/engine"
	"github.com/sells-group/readiness-cli/internal/export"
	"github.com/sells-group/readiness-cli/internal/model"
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score every country over the stored indicator records",
	Long:  "Claims the methodology version, scores all countries against the current record set, diffs against the previous completed run and persists the result as one assessment run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		methodology, _ := cmd.Flags().GetString("methodology")
		refYear, _ := cmd.Flags().GetInt("reference-year")
		output, _ := cmd.Flags().GetString("output")
		if refYear == 0 {
			refYear = cfg.Engine.ReferenceYear
		}

		reg, err := selectRegistry(cfg.Engine, methodology)
		if err != nil {
			return err
		}
		eng, err := engine.New(reg, cfg.Engine.Workers)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, "assess")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := assess.NewRunner(st, eng).Run(ctx, assess.Options{ReferenceYear: refYear})
		if err != nil {
			return eris.Wrap(err, "assess")
		}

		zap.L().Info("assess: run complete",
			zap.String("assessment_id", run.ID),
			zap.String("methodology_version", run.MethodologyVersion),
			zap.Int("countries", len(run.Scores)),
			zap.Int("records", run.RecordCount),
			zap.Int("rejections", len(run.Rejections)),
		)

		if output != "" {
			if err := writeExportFile(output, "json", run); err != nil {
				return err
			}
		}
		formatScores(os.Stdout, run)
		return nil
	},
}

func init() {
	assessCmd.Flags().String("methodology", "", "methodology version to score with (default from config)")
	assessCmd.Flags().Int("reference-year", 0, "year staleness is measured against (default: latest year in the records)")
	assessCmd.Flags().String("output", "", "also write the assessment document as JSON to this path")
	rootCmd.AddCommand(assessCmd)
}

// formatScores writes the run's countries ranked by total score.
func formatScores(out io.Writer, run *model.AssessmentRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run %s (methodology %s, reference year %d)\n", truncateID(run.ID), run.MethodologyVersion, run.ReferenceYear)
	_, _ = fmt.Fprintln(w, "CODE\tCOUNTRY\tTOTAL\tTIER\tCONFIDENCE\tCOMPLETE\tTRAJECTORY")
	_, _ = fmt.Fprintln(w, "----\t-------\t-----\t----\t----------\t--------\t----------")

	rows := export.ScoreRows(run)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalScore > rows[j].TotalScore })
	for _, cs := range rows {
		conf := fmt.Sprintf("%.2f", cs.OverallConfidence)
		if cs.LowConfidence {
			conf += "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\t%.0f%%\t%s\n",
			cs.CountryCode,
			cs.CountryName,
			cs.TotalScore,
			cs.Tier,
			conf,
			cs.DataCompleteness,
			cs.Trajectory,
		)
	}
	if n := len(run.Rejections); n > 0 {
		_, _ = fmt.Fprintf(w, "%d records rejected (see runs show %s)\n", n, run.ID)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
