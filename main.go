// =============================================================================
// CSV Invoice Tool - Main Entry Point
// =============================================================================
//
// USAGE:
//   invoicer process --month YYYY-MM  - Normalize sales CSVs and issue invoices
//   invoicer invoice --month YYYY-MM  - Re-issue invoices from summary_by_store.csv
//   invoicer runs [--id RUN]          - Show runs recorded in the SQLite store
//   invoicer version                  - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : parsing, normalization, aggregation, reports, invoices
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/csv-invoice-tool/cmd"
)

func main() {
	cmd.Execute()
}
