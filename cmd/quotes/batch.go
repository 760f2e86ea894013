package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
	"github.com/joseph-ayodele/quote-compare/internal/export"
	"github.com/joseph-ayodele/quote-compare/internal/fieldschema"
	"github.com/joseph-ayodele/quote-compare/internal/ingest"
	"github.com/joseph-ayodele/quote-compare/internal/pipeline"
)

var (
	batchDir       string
	batchSchema    string
	batchOut       string
	batchRecursive bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every PDF in a directory and write the comparison workbook",
	Long: `Extract every PDF in --dir and write the comparison workbook.

Per-document failures are printed and do not change the exit status; only
configuration, directory and export errors do.

Examples:
  quotes batch --dir ./quotes
  quotes batch --dir ./quotes --schema template.xlsx --out result.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := common.LoadConfig()
		logger := newLogger(cfg)

		if err := cfg.ValidateExtraction(); err != nil {
			logger.Error("config.invalid", "error", err)
			return err
		}
		if batchOut == "" {
			batchOut = filepath.Join(filepath.Dir(filepath.Clean(batchDir)), constants.ExportFileName)
		}

		res := fieldschema.Default()
		if batchSchema != "" {
			f, err := os.Open(batchSchema)
			if err != nil {
				return fmt.Errorf("open schema: %w", err)
			}
			r, err := fieldschema.NewResolver(logger).Resolve(f)
			_ = f.Close()
			if err != nil {
				printError("Warning: %v; using default fields\n", err)
			}
			res = r
		}

		docs, results, stats, err := ingest.LoadDirectory(ctx, batchDir, ingest.Options{
			SkipHidden: true,
			Recursive:  batchRecursive,
			MaxBytes:   int64(cfg.Server.MaxUploadMB) << 20,
		}, logger)
		if err != nil {
			logger.Error("ingest.directory.failed", "dir", batchDir, "error", err)
			return err
		}
		for _, r := range results {
			if r.Err != "" {
				printError("Skipped %s: %s\n", r.Path, r.Err)
			}
		}
		if len(docs) == 0 {
			fmt.Printf("No PDF files found in %s\n", batchDir)
			return nil
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, runErr := a.processor.RunBatch(ctx, res.Fields, docs, func(p pipeline.Progress) {
			status := "ok"
			if !p.Outcome.OK() {
				status = "FAILED"
			}
			fmt.Printf("[%d/%d] %s %s (%s)\n", p.Index, p.Total, p.Outcome.FileName, status, p.Outcome.Method)
		})
		if runErr != nil {
			printError("Batch interrupted: %v\n", runErr)
		}

		table := compare.Seed(res.Fields, res.Seed)
		for _, row := range rep.Rows() {
			table.Append(row, res.Fields)
		}

		printNotices(cmd.OutOrStdout(), rep.Notices())

		if table.Len() == 0 {
			fmt.Println("Nothing to export.")
			return runErr
		}
		b, err := export.NewService(logger).WriteXLSX(table, res.Fields)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := os.WriteFile(batchOut, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", batchOut, err)
		}

		fmt.Printf("\nBatch complete: %d scanned, %d deduplicated, %d succeeded, %d failed\n",
			stats.Matched, stats.Deduplicated, rep.Succeeded(), rep.Failed())
		fmt.Printf("Export: %s (%d rows, %d bytes)\n", batchOut, table.Len(), len(b))
		return runErr
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of quote PDFs (required)")
	batchCmd.Flags().StringVar(&batchSchema, "schema", "", "Excel template whose header row lists the fields")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output XLSX path (default: next to --dir)")
	batchCmd.Flags().BoolVar(&batchRecursive, "recursive", false, "include subdirectories")
	_ = batchCmd.MarkFlagRequired("dir")
}

// printNotices writes one line per notice, followed by the model reply
// excerpt when the reply could not be parsed.
func printNotices(w io.Writer, notices []common.Notice) {
	for _, n := range notices {
		line := fmt.Sprintf("%s: %s", n.Level, n.Message)
		if n.Hint != "" {
			line += " (" + n.Hint + ")"
		}
		fmt.Fprintln(w, line)
		if n.Raw != "" {
			fmt.Fprintf(w, "  raw reply: %s\n", strings.ReplaceAll(n.Raw, "\n", "\n             "))
		}
	}
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}
