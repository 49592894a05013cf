package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-cli/internal/ingest"
	"github.com/sells-group/readiness-cli/internal/registry"
	"github.com/sells-group/readiness-cli/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Append collected indicator records from CSV, XLSX or JSON",
	Long:  "Parses a collector hand-off file into typed indicator records and appends them to the store. Records are never updated; ids already present are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		sheet, _ := cmd.Flags().GetString("sheet")
		methodology, _ := cmd.Flags().GetString("methodology")
		strict, _ := cmd.Flags().GetBool("strict")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		reg, err := selectRegistry(cfg.Engine, methodology)
		if err != nil {
			return err
		}

		var st store.Store
		if !dryRun {
			st, err = initStore(ctx, "import")
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		sum, err := importRecords(ctx, st, reg, importOptions{Path: path, Sheet: sheet, Strict: strict})
		if err != nil {
			return err
		}
		formatImportSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}

func init() {
	importCmd.Flags().String("file", "", "path to a .csv, .xlsx or .json file (required)")
	importCmd.Flags().String("sheet", "", "XLSX worksheet name (default: first sheet)")
	importCmd.Flags().String("methodology", "", "methodology version used to type values (default from config)")
	importCmd.Flags().Bool("strict", false, "append nothing if any row is rejected")
	importCmd.Flags().Bool("dry-run", false, "parse and validate without writing to the store")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

type importOptions struct {
	Path   string
	Sheet  string
	Strict bool
}

type importSummary struct {
	Path     string
	Rows     int
	Parsed   int
	Appended int
	Rejected []ingest.RowError
	DryRun   bool
}

// importRecords reads, types and appends one file. A nil store means a
// dry run.
func importRecords(ctx context.Context, st store.Store, reg *registry.Registry, opts importOptions) (importSummary, error) {
	sum := importSummary{Path: opts.Path, DryRun: st == nil}

	rows, err := ingest.ReadFile(ctx, opts.Path, opts.Sheet)
	if err != nil {
		return sum, err
	}
	sum.Rows = len(rows)

	res := ingest.NewConverter(reg).Convert(rows)
	sum.Parsed = len(res.Records)
	sum.Rejected = res.Rejected

	if opts.Strict && len(res.Rejected) > 0 {
		return sum, eris.Errorf("import: %d of %d rows rejected (strict mode, nothing appended)", len(res.Rejected), len(rows))
	}
	if st == nil || len(res.Records) == 0 {
		return sum, nil
	}

	n, err := st.AppendRecords(ctx, res.Records)
	if err != nil {
		return sum, eris.Wrap(err, "import: append records")
	}
	sum.Appended = n

	zap.L().Info("import: complete",
		zap.String("file", opts.Path),
		zap.Int("rows", sum.Rows),
		zap.Int("appended", n),
		zap.Int("duplicates", sum.Parsed-n),
		zap.Int("rejected", len(sum.Rejected)),
	)
	return sum, nil
}

func formatImportSummary(out io.Writer, s importSummary) {
	_, _ = fmt.Fprintf(out, "%s: %d rows, %d parsed, %d rejected\n", s.Path, s.Rows, s.Parsed, len(s.Rejected))
	if s.DryRun {
		_, _ = fmt.Fprintln(out, "dry run: nothing written")
	} else {
		_, _ = fmt.Fprintf(out, "appended %d new records (%d already present)\n", s.Appended, s.Parsed-s.Appended)
	}
	for _, r := range s.Rejected {
		_, _ = fmt.Fprintf(out, "  line %d: %s\n", r.Line, r.Reason)
	}
}
