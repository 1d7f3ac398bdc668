// =============================================================================
// CSV Invoice Tool - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the whole monthly
// pipeline.
//
// COMMAND USAGE:
//   invoicer process --month YYYY-MM [flags]
//
// FLAGS:
//   --month          : Billing month (required)
//   --dry-run        : Normalize and aggregate, write nothing
//   --skip-invoices  : Stop after the report tables
//   --debug          : List the generated invoice files
//
// PROCESSING PIPELINE:
//   1. Load configuration
//   2. Discover <store>_<YYYY>_<MM>.csv files in the input directory
//   3. Normalize and aggregate each file (concurrently)
//   4. Write normalized.csv, errors.csv and the two summaries
//      (plus report.xlsx when export_xlsx is set)
//   5. Persist the run to SQLite when sqlite_path is set
//   6. Issue one invoice per store from summary_by_store.csv
//   7. Archive the inputs and write the processing summary log
//
// A file that cannot be read does not stop the run. Its error is reported
// and the command exits non-zero after all outputs are written.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/invoice"
	"github.com/ginjaninja78/csv-invoice-tool/internal/logging"
	"github.com/ginjaninja78/csv-invoice-tool/internal/pipeline"
	"github.com/ginjaninja78/csv-invoice-tool/internal/report"
	"github.com/ginjaninja78/csv-invoice-tool/internal/store"
	"github.com/ginjaninja78/csv-invoice-tool/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// processOptions holds the flags of the process command.
type processOptions struct {
	month        string
	dryRun       bool
	skipInvoices bool
	debug        bool
}

var processOpts processOptions

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Normalize the month's sales CSVs and issue invoices",
	Long: `The process command scans the input directory for <store>_<YYYY>_<MM>.csv
files of the given month, normalizes every row, and aggregates the accepted
rows per store and per item.

Outputs (in output_dir):
  normalized.csv        accepted rows
  errors.csv            rejected rows with file, line and reason
  summary_by_store.csv  totals per store
  summary_by_item.csv   totals per item

Invoices are then written to invoices_dir, one per store.

Rows that fail validation never stop the run. Files that cannot be read are
reported and make the command exit non-zero.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		return runProcess(cmd.Context(), cfg, logger, processOpts)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processOpts.month, "month", "", "Billing month as YYYY-MM")
	processCmd.Flags().BoolVar(&processOpts.dryRun, "dry-run", false, "Normalize and aggregate without writing any file")
	processCmd.Flags().BoolVar(&processOpts.skipInvoices, "skip-invoices", false, "Write the report tables but no invoices")
	processCmd.Flags().BoolVar(&processOpts.debug, "debug", false, "List the generated invoice files")

	_ = processCmd.MarkFlagRequired("month")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess orchestrates one monthly run.
func runProcess(ctx context.Context, cfg *config.MainConfig, logger *slog.Logger, opts processOptions) error {
	month, err := pipeline.ParseMonth(opts.month)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: NORMALIZE AND AGGREGATE
	// =========================================================================

	fmt.Println("=== CSV Invoice Tool ===")
	fmt.Printf("Processing %s from %s\n", month, cfg.InputDir)

	result, err := pipeline.New(cfg, logger).Run(ctx, month)
	if errors.Is(err, pipeline.ErrNoInputFiles) {
		logger.Warn("no input files", "month", month.String(), "input_dir", cfg.InputDir)
		return err
	}
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	ctx = logging.WithRunID(ctx, result.RunID)
	logger = logger.With("run_id", result.RunID)

	printFileResults(result)

	if opts.dryRun {
		fmt.Println("\nDry run: no files written.")
		printTotals(result, nil)
		return result.Err()
	}

	// =========================================================================
	// STEP 2: REPORT TABLES
	// =========================================================================

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InvoicesDir, cfg.InputArchiveDir)
	fm.ArchiveOnSuccess = cfg.ArchiveInputs
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	tables := report.Tables(result.Records, result.Rejections, result.Totals)
	outputs, err := report.WriteAll(cfg.OutputDir, tables)
	if err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	logger.Info("outputs written", "dir", cfg.OutputDir, "files", len(outputs))

	if cfg.ExportXLSX {
		path := filepath.Join(cfg.OutputDir, report.WorkbookFile)
		if err := report.WriteWorkbook(path, tables, logger); err != nil {
			return err
		}
		outputs = append(outputs, path)
	}

	// =========================================================================
	// STEP 3: RUN STORE
	// =========================================================================

	var db *store.Store
	if cfg.SQLitePath != "" {
		db, err = store.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SaveRun(ctx, result); err != nil {
			return err
		}
		logger.Info("run saved", "sqlite_path", cfg.SQLitePath)
	}

	// =========================================================================
	// STEP 4: INVOICES
	// =========================================================================

	var generated []invoice.Generated
	var invoiceErr error
	if !opts.skipInvoices {
		generated, invoiceErr = issueInvoices(ctx, cfg, logger,
			filepath.Join(cfg.OutputDir, report.SummaryByStoreFile), month)
		if invoiceErr == nil && db != nil {
			invoiceErr = db.SaveInvoices(ctx, result.RunID, invoiceRows(generated))
		}
		if invoiceErr != nil {
			logger.Error("invoice generation failed", "error", invoiceErr)
		}
	}

	// =========================================================================
	// STEP 5: ARCHIVE AND SUMMARY
	// =========================================================================

	summary := newSummary(result, outputs, generated)
	if invoiceErr == nil {
		archiveInputs(fm, &summary, logger)
	}

	summaryPath, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
	if err != nil {
		logger.Error("summary log failed", "error", err)
	} else {
		logger.Debug("summary log written", "path", summaryPath)
	}

	printTotals(result, generated)
	if opts.debug {
		printInvoices(generated)
	}

	return errors.Join(invoiceErr, result.Err())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// issueInvoices builds and renders invoices from a summary_by_store.csv file.
func issueInvoices(ctx context.Context, cfg *config.MainConfig, logger *slog.Logger, summaryPath string, month pipeline.Month) ([]invoice.Generated, error) {
	entries, err := report.LoadSummaryByStore(summaryPath)
	if err != nil {
		return nil, err
	}

	settings, err := invoice.SettingsFromConfig(cfg.Invoice)
	if err != nil {
		return nil, err
	}
	renderer, err := invoice.NewRenderer(cfg.Invoice.Format, settings)
	if err != nil {
		return nil, err
	}

	invoices := invoice.Build(entries, month.Compact(), time.Now(), settings)
	return invoice.GenerateAll(ctx, renderer, invoices, cfg.InvoicesDir, logger)
}

func invoiceRows(generated []invoice.Generated) []store.InvoiceRow {
	rows := make([]store.InvoiceRow, 0, len(generated))
	for _, g := range generated {
		rows = append(rows, store.InvoiceRow{
			Number:    g.Invoice.Number,
			Store:     g.Invoice.BillTo,
			IssueDate: g.Invoice.IssueDate.Format(invoice.DateLayout),
			DueDate:   g.Invoice.DueDate.Format(invoice.DateLayout),
			Subtotal:  g.Invoice.Subtotal,
			Tax:       g.Invoice.Tax,
			Total:     g.Invoice.Total,
			Path:      g.Path,
		})
	}
	return rows
}

// archiveInputs moves every successfully read input into the archive.
func archiveInputs(fm *utils.FileManager, summary *utils.ProcessingSummary, logger *slog.Logger) {
	if !fm.ArchiveOnSuccess {
		return
	}
	for i := range summary.ProcessedFiles {
		pf := &summary.ProcessedFiles[i]
		path, err := fm.ArchiveInputFile(pf.InputFile)
		if err != nil {
			logger.Warn("archive failed", "file", filepath.Base(pf.InputFile), "error", err)
			continue
		}
		pf.ArchivePath = path
	}
	logger.Debug("inputs archived", "dir", fm.InputArchiveDir)
}

func newSummary(result *pipeline.Result, outputs []string, generated []invoice.Generated) utils.ProcessingSummary {
	s := utils.ProcessingSummary{
		RunID:        result.RunID,
		Month:        result.Month.String(),
		StartTime:    result.StartedAt,
		EndTime:      time.Now(),
		TotalFiles:   len(result.Files),
		RowsAccepted: len(result.Records),
		RowsRejected: len(result.Rejections),
		GrandTotal:   result.Totals.Sum(),
		Outputs:      outputs,
	}
	for _, fr := range result.Files {
		if fr.Err != nil {
			s.FailedFiles++
			s.FailedFilesList = append(s.FailedFilesList, utils.FailedFileInfo{
				InputFile:    fr.FilePath,
				ErrorMessage: fr.Err.Error(),
			})
			continue
		}
		s.SuccessfulFiles++
		s.ProcessedFiles = append(s.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   fr.FilePath,
			Store:       fr.Store,
			Rows:        fr.Stats.RowsProcessed,
			Accepted:    fr.Stats.RowsAccepted,
			Rejected:    fr.Stats.RowsRejected,
			ProcessTime: fr.Stats.ProcessingTime,
		})
	}
	for _, g := range generated {
		s.Invoices = append(s.Invoices, g.Path)
	}
	return s
}

func printFileResults(result *pipeline.Result) {
	for _, fr := range result.Files {
		name := filepath.Base(fr.FilePath)
		if fr.Err != nil {
			fmt.Printf("  ✗ %s: %v\n", name, fr.Err)
			continue
		}
		fmt.Printf("  ✓ %s (%s): %d accepted, %d rejected\n",
			name, fr.Store, fr.Stats.RowsAccepted, fr.Stats.RowsRejected)
	}
}

func printTotals(result *pipeline.Result, generated []invoice.Generated) {
	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Run ID:          %s\n", result.RunID)
	fmt.Printf("Total files:     %d\n", len(result.Files))
	fmt.Printf("Failed files:    %d\n", len(result.FailedFiles()))
	fmt.Printf("Rows accepted:   %d\n", len(result.Records))
	fmt.Printf("Rows rejected:   %d\n", len(result.Rejections))
	fmt.Printf("Invoices:        %d\n", len(generated))
	fmt.Printf("Time elapsed:    %s\n", result.Elapsed)
}

func printInvoices(generated []invoice.Generated) {
	fmt.Println("\nCreated invoices:")
	for _, g := range generated {
		fmt.Printf("  - %s\n", g.Path)
	}
}
