// =============================================================================
// CSV Invoice Tool - Runs Command
// =============================================================================
//
// This file defines the 'runs' command, which reads back the runs recorded
// in the SQLite run store (sqlite_path in config.yaml).
//
// COMMAND USAGE:
//   invoicer runs [--month YYYY-MM]   - List recorded runs, oldest first
//   invoicer runs --id <run-id>       - Show one run with its store totals
//                                       and issued invoices
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/pipeline"
	"github.com/ginjaninja78/csv-invoice-tool/internal/store"
)

// errNoRunStore is returned when sqlite_path is not configured.
var errNoRunStore = errors.New("sqlite_path is not configured; runs are not recorded")

type runsOptions struct {
	month string
	id    string
}

var runsOpts runsOptions

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List processing runs recorded in the run store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		return runRuns(cmd.Context(), cfg, os.Stdout, runsOpts)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().StringVar(&runsOpts.month, "month", "", "Only list runs of this month (YYYY-MM)")
	runsCmd.Flags().StringVar(&runsOpts.id, "id", "", "Show the details of one run")

	runsCmd.MarkFlagsMutuallyExclusive("month", "id")
}

func runRuns(ctx context.Context, cfg *config.MainConfig, w io.Writer, opts runsOptions) error {
	if cfg.SQLitePath == "" {
		return errNoRunStore
	}
	if opts.month != "" {
		if _, err := pipeline.ParseMonth(opts.month); err != nil {
			return err
		}
	}

	db, err := store.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if opts.id != "" {
		return printRun(ctx, db, w, opts.id)
	}

	runs, err := db.ListRuns(ctx, opts.month)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-7s  %-19s  %5s  %6s  %8s  %8s  %12s\n",
		"RUN ID", "MONTH", "STARTED", "FILES", "FAILED", "ACCEPTED", "REJECTED", "TOTAL")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-7s  %-19s  %5d  %6d  %8d  %8d  %12d\n",
			r.ID, r.Month, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Files, r.FailedFiles, r.Accepted, r.Rejected, r.Total)
	}
	return nil
}

// printRun shows one run with its per-store totals and issued invoices.
func printRun(ctx context.Context, db *store.Store, w io.Writer, id string) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	totals, err := db.StoreTotals(ctx, id)
	if err != nil {
		return err
	}
	invoices, err := db.Invoices(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run ID:        %s\n", run.ID)
	fmt.Fprintf(w, "Month:         %s\n", run.Month)
	fmt.Fprintf(w, "Started:       %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Files:         %d (%d failed)\n", run.Files, run.FailedFiles)
	fmt.Fprintf(w, "Rows:          %d accepted, %d rejected\n", run.Accepted, run.Rejected)
	fmt.Fprintf(w, "Grand total:   %d\n", run.Total)

	fmt.Fprintln(w, "\nTotals by store:")
	for _, e := range totals {
		fmt.Fprintf(w, "  %-24s %12d\n", e.Key, e.Total)
	}

	if len(invoices) == 0 {
		fmt.Fprintln(w, "\nNo invoices recorded.")
		return nil
	}
	fmt.Fprintln(w, "\nInvoices:")
	for _, inv := range invoices {
		fmt.Fprintf(w, "  %-24s %-24s %12d  %s\n", inv.Number, inv.Store, inv.Total, inv.Path)
	}
	return nil
}
