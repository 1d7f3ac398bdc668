// =============================================================================
// CSV Invoice Tool - Report Tables
// =============================================================================
//
// This module turns the result of a run into the four output tables and
// writes them as CSV:
//
//   normalized.csv        date, store, item, quantity, amount
//   errors.csv            file, line, store, reason, raw
//   summary_by_store.csv  store, total_amount   (sorted by store)
//   summary_by_item.csv   item, total_amount    (sorted by item)
//
// The same tables feed the optional XLSX workbook (workbook.go).
//
// =============================================================================

package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ginjaninja78/csv-invoice-tool/internal/aggregator"
	"github.com/ginjaninja78/csv-invoice-tool/internal/types"
)

// Output file names.
const (
	NormalizedFile     = "normalized.csv"
	ErrorsFile         = "errors.csv"
	SummaryByStoreFile = "summary_by_store.csv"
	SummaryByItemFile  = "summary_by_item.csv"
	WorkbookFile       = "report.xlsx"
)

// =============================================================================
// TABLES
// =============================================================================

// Table is one output table. Cells are string, int or int64.
type Table struct {
	// Name is the CSV file name without extension, and the sheet name.
	Name   string
	Header []string
	Rows   [][]any
}

// FileName returns the CSV file name of the table.
func (t Table) FileName() string {
	return t.Name + ".csv"
}

// NormalizedTable lists the accepted records in input order.
func NormalizedTable(records []types.NormalizedRecord) Table {
	t := Table{
		Name:   "normalized",
		Header: []string{"date", "store", "item", "quantity", "amount"},
		Rows:   make([][]any, 0, len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []any{r.Date, r.Store, r.Item, r.Quantity, r.Amount})
	}
	return t
}

// ErrorsTable lists the rejected records in input order.
func ErrorsTable(rejections []types.Rejection) Table {
	t := Table{
		Name:   "errors",
		Header: []string{"file", "line", "store", "reason", "raw"},
		Rows:   make([][]any, 0, len(rejections)),
	}
	for _, r := range rejections {
		t.Rows = append(t.Rows, []any{r.File, r.Line, r.Store, r.Reason, r.Raw.String()})
	}
	return t
}

// SummaryByStoreTable lists per-store totals sorted by store.
func SummaryByStoreTable(totals aggregator.Totals) Table {
	return summaryTable("summary_by_store", "store", totals.Stores())
}

// SummaryByItemTable lists per-item totals sorted by item.
func SummaryByItemTable(totals aggregator.Totals) Table {
	return summaryTable("summary_by_item", "item", totals.Items())
}

func summaryTable(name, key string, entries []aggregator.Entry) Table {
	t := Table{
		Name:   name,
		Header: []string{key, "total_amount"},
		Rows:   make([][]any, 0, len(entries)),
	}
	for _, e := range entries {
		t.Rows = append(t.Rows, []any{e.Key, e.Total})
	}
	return t
}

// Tables returns the four output tables in their canonical order.
func Tables(records []types.NormalizedRecord, rejections []types.Rejection, totals aggregator.Totals) []Table {
	return []Table{
		NormalizedTable(records),
		ErrorsTable(rejections),
		SummaryByStoreTable(totals),
		SummaryByItemTable(totals),
	}
}

// =============================================================================
// CSV OUTPUT
// =============================================================================

// WriteCSV writes a table as UTF-8 CSV. The file is written next to its
// final path and renamed into place, so readers never see a partial file.
func WriteCSV(path string, t Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Header); err != nil {
		tmp.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}

	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = cellString(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("csv: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("csv: rename %q: %w", path, err)
	}
	return nil
}

// WriteAll writes every table into dir and returns the written paths.
func WriteAll(dir string, tables []Table) ([]string, error) {
	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, t.FileName())
		if err := WriteCSV(path, t); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func cellString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
