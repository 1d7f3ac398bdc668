// =============================================================================
// CSV Invoice Tool - Invoice Command
// =============================================================================
//
// This file defines the 'invoice' command, which re-issues invoices from an
// existing summary_by_store.csv without reprocessing the sales CSVs. Use it
// after correcting issuer or bank details, or after installing the font.
//
// COMMAND USAGE:
//   invoicer invoice --month YYYY-MM [--summary path]
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/pipeline"
	"github.com/ginjaninja78/csv-invoice-tool/internal/report"
	"github.com/ginjaninja78/csv-invoice-tool/pkg/utils"
)

var (
	invoiceMonth   string
	invoiceSummary string
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Issue invoices from summary_by_store.csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		return runInvoice(cmd.Context(), cfg, logger, invoiceMonth, invoiceSummary)
	},
}

// runInvoice issues the month's invoices from summary, or from
// <output_dir>/summary_by_store.csv when summary is empty.
func runInvoice(ctx context.Context, cfg *config.MainConfig, logger *slog.Logger, monthFlag, summary string) error {
	month, err := pipeline.ParseMonth(monthFlag)
	if err != nil {
		return err
	}

	if summary == "" {
		summary = filepath.Join(cfg.OutputDir, report.SummaryByStoreFile)
	}
	if !utils.FileExists(summary) {
		return fmt.Errorf("%s not found: run 'invoicer process --month %s' first", summary, month)
	}

	generated, err := issueInvoices(ctx, cfg, logger, summary, month)
	if err != nil {
		return err
	}

	fmt.Printf("Issued %d invoice(s) for %s\n", len(generated), month)
	printInvoices(generated)
	return nil
}

func init() {
	rootCmd.AddCommand(invoiceCmd)

	invoiceCmd.Flags().StringVar(&invoiceMonth, "month", "", "Billing month as YYYY-MM")
	invoiceCmd.Flags().StringVar(&invoiceSummary, "summary", "", "Path to summary_by_store.csv (default <output_dir>/summary_by_store.csv)")

	_ = invoiceCmd.MarkFlagRequired("month")
}
