/*
Package store records processing runs in SQLite.

Persistence is optional (sqlite_path in config.yaml). When enabled, every
process run stores its accepted rows, rejections, per-store and per-item
totals and the invoices issued from them, keyed by run ID, so that earlier
months can be audited without keeping the CSV outputs around.

KEY TABLES:

	runs:          one row per run (month, counts, grand total)
	sales:         accepted rows
	rejections:    rejected rows with reason and raw content
	store_totals:  per-store totals
	item_totals:   per-item totals
	invoices:      issued invoices

USAGE:

	st, err := store.Open(ctx, "./data/invoicer.db")
	if err != nil {
	    return err
	}
	defer st.Close()

	err = st.SaveRun(ctx, result)

MIGRATION:

	Schema is auto-migrated on Open with CREATE TABLE IF NOT EXISTS.
*/
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/csv-invoice-tool/internal/aggregator"
	"github.com/ginjaninja78/csv-invoice-tool/internal/pipeline"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite-backed run store.
type Store struct {
	db *sql.DB
}

// Run is the summary row of a processing run.
type Run struct {
	ID          string
	Month       string
	StartedAt   time.Time
	Files       int
	FailedFiles int
	Accepted    int
	Rejected    int
	Total       int64
}

// InvoiceRow is an issued invoice as recorded for a run.
type InvoiceRow struct {
	Number    string
	Store     string
	IssueDate string
	DueDate   string
	Subtotal  int64
	Tax       int64
	Total     int64
	Path      string
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			month TEXT NOT NULL,
			started_at TEXT NOT NULL,
			files INTEGER NOT NULL,
			failed_files INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			total INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_month ON runs(month, started_at)`,
		`CREATE TABLE IF NOT EXISTS sales (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			date TEXT NOT NULL,
			store TEXT NOT NULL,
			item TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS rejections (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			file TEXT NOT NULL,
			line INTEGER NOT NULL,
			store TEXT NOT NULL,
			reason TEXT NOT NULL,
			raw TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS store_totals (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			store TEXT NOT NULL,
			total INTEGER NOT NULL,
			PRIMARY KEY (run_id, store)
		)`,
		`CREATE TABLE IF NOT EXISTS item_totals (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			item TEXT NOT NULL,
			total INTEGER NOT NULL,
			PRIMARY KEY (run_id, item)
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			number TEXT NOT NULL,
			store TEXT NOT NULL,
			issue_date TEXT NOT NULL,
			due_date TEXT NOT NULL,
			subtotal INTEGER NOT NULL,
			tax INTEGER NOT NULL,
			total INTEGER NOT NULL,
			path TEXT NOT NULL,
			PRIMARY KEY (run_id, store)
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a pipeline result in a single transaction.
func (s *Store) SaveRun(ctx context.Context, r *pipeline.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, month, started_at, files, failed_files, accepted, rejected, total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Month.String(), r.StartedAt.UTC().Format(time.RFC3339Nano),
		len(r.Files), len(r.FailedFiles()), len(r.Records), len(r.Rejections), r.Totals.Sum(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err = insertEach(ctx, tx,
		`INSERT INTO sales (run_id, seq, date, store, item, quantity, amount) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(r.Records), func(i int) []any {
			rec := r.Records[i]
			return []any{r.RunID, i + 1, rec.Date, rec.Store, rec.Item, rec.Quantity, rec.Amount}
		}); err != nil {
		return fmt.Errorf("insert sales: %w", err)
	}

	if err = insertEach(ctx, tx,
		`INSERT INTO rejections (run_id, seq, file, line, store, reason, raw) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(r.Rejections), func(i int) []any {
			rej := r.Rejections[i]
			return []any{r.RunID, i + 1, rej.File, rej.Line, rej.Store, rej.Reason, rej.Raw.String()}
		}); err != nil {
		return fmt.Errorf("insert rejections: %w", err)
	}

	stores := r.Totals.Stores()
	if err = insertEach(ctx, tx,
		`INSERT INTO store_totals (run_id, store, total) VALUES (?, ?, ?)`,
		len(stores), func(i int) []any { return []any{r.RunID, stores[i].Key, stores[i].Total} }); err != nil {
		return fmt.Errorf("insert store totals: %w", err)
	}

	items := r.Totals.Items()
	if err = insertEach(ctx, tx,
		`INSERT INTO item_totals (run_id, item, total) VALUES (?, ?, ?)`,
		len(items), func(i int) []any { return []any{r.RunID, items[i].Key, items[i].Total} }); err != nil {
		return fmt.Errorf("insert item totals: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveInvoices records the invoices issued for a run.
func (s *Store) SaveInvoices(ctx context.Context, runID string, invoices []InvoiceRow) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertEach(ctx, tx,
		`INSERT OR REPLACE INTO invoices (run_id, number, store, issue_date, due_date, subtotal, tax, total, path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(invoices), func(i int) []any {
			inv := invoices[i]
			return []any{runID, inv.Number, inv.Store, inv.IssueDate, inv.DueDate, inv.Subtotal, inv.Tax, inv.Total, inv.Path}
		}); err != nil {
		return fmt.Errorf("insert invoices: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertEach(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// GetRun returns the summary of one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, month, started_at, files, failed_files, accepted, rejected, total FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the runs of a month, oldest first. An empty month lists
// every run.
func (s *Store) ListRuns(ctx context.Context, month string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, month, started_at, files, failed_files, accepted, rejected, total
		 FROM runs WHERE ? = '' OR month = ? ORDER BY started_at, id`, month, month)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StoreTotals returns the per-store totals of a run, sorted by store.
func (s *Store) StoreTotals(ctx context.Context, runID string) ([]aggregator.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store, total FROM store_totals WHERE run_id = ? ORDER BY store`, runID)
	if err != nil {
		return nil, fmt.Errorf("query store totals: %w", err)
	}
	defer rows.Close()

	var entries []aggregator.Entry
	for rows.Next() {
		var e aggregator.Entry
		if err := rows.Scan(&e.Key, &e.Total); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Invoices returns the invoices recorded for a run, sorted by number. Two
// stores can share a number ("a b" and "a_b"), so rows are keyed by store.
func (s *Store) Invoices(ctx context.Context, runID string) ([]InvoiceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, store, issue_date, due_date, subtotal, tax, total, path
		 FROM invoices WHERE run_id = ? ORDER BY number, store`, runID)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []InvoiceRow
	for rows.Next() {
		var inv InvoiceRow
		if err := rows.Scan(&inv.Number, &inv.Store, &inv.IssueDate, &inv.DueDate,
			&inv.Subtotal, &inv.Tax, &inv.Total, &inv.Path); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run     Run
		started string
	)
	if err := sc.Scan(&run.ID, &run.Month, &started, &run.Files, &run.FailedFiles,
		&run.Accepted, &run.Rejected, &run.Total); err != nil {
		return Run{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	run.StartedAt = t
	return run, nil
}
