// =============================================================================
// CSV Invoice Tool - Pipeline Module
// =============================================================================
//
// This module drives one processing run for a billing month. It owns file
// discovery, store labelling and the fan-out over input files; the row rules
// live in the normalizer and the sums in the aggregator.
//
// PROCESSING PIPELINE:
//   1. List <store>_<YYYY>_<MM>.csv files in the input directory
//   2. For each file (concurrently, bounded by max_concurrency):
//      a. Infer the store label from the file name
//      b. Stream the CSV records
//      c. Normalize each record, collecting accepted rows and rejections
//      d. Aggregate the accepted rows into a per-file shard
//   3. Merge the shards in file name order
//
// CONCURRENCY:
//   Files are independent. Each goroutine writes only its own FileResult
//   slot, and merging happens after all of them finished, in sorted order,
//   so the output does not depend on scheduling.
//
// ERRORS:
//   A file that cannot be read is recorded in its FileResult and contributes
//   nothing; the other files are still processed. Run itself only fails when
//   there are no input files, the directory is unreadable or ctx is done.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/csv-invoice-tool/internal/aggregator"
	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/csvparser"
	"github.com/ginjaninja78/csv-invoice-tool/internal/normalizer"
	"github.com/ginjaninja78/csv-invoice-tool/internal/types"
)

// ErrNoInputFiles is returned by Run when no file matches the month.
var ErrNoInputFiles = errors.New("no input files found")

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// FileResult is the outcome of processing a single input file.
type FileResult struct {
	// FilePath is the path to the input file.
	FilePath string

	// Store is the label inferred from the file name.
	Store string

	// Records are the accepted rows, in file order.
	Records []types.NormalizedRecord

	// Rejections are the rejected rows, in file order.
	Rejections []types.Rejection

	// Totals is the aggregation shard of Records.
	Totals aggregator.Totals

	// Err is set when the file could not be read. Records, Rejections and
	// Totals are then empty.
	Err error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing of one file.
type ProcessingStats struct {
	RowsProcessed  int
	RowsAccepted   int
	RowsRejected   int
	ProcessingTime time.Duration
}

// Result is the outcome of a whole run.
type Result struct {
	// RunID identifies the run in logs, the summary log and SQLite.
	RunID string

	Month     Month
	StartedAt time.Time
	Elapsed   time.Duration

	// Files holds one entry per input file, sorted by path.
	Files []FileResult

	// Records and Rejections concatenate the per-file lists in file order.
	Records    []types.NormalizedRecord
	Rejections []types.Rejection

	// Totals is the merge of all shards.
	Totals aggregator.Totals
}

// FailedFiles returns the files that could not be read.
func (r *Result) FailedFiles() []FileResult {
	var failed []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Err joins the per-file errors, or returns nil when every file was read.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.FailedFiles() {
		errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(f.FilePath), f.Err))
	}
	return errors.Join(errs...)
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor runs the pipeline with a fixed configuration.
type Processor struct {
	cfg    *config.MainConfig
	logger *slog.Logger

	// newRunID is replaceable in tests.
	newRunID func() string
	now      func() time.Time
}

// New creates a Processor. A nil logger uses slog.Default().
func New(cfg *config.MainConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:      cfg,
		logger:   logger,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// Run processes every input file of the month.
//
// RETURNS:
//   - The merged Result. Per-file read errors are inside it, see Result.Err.
//   - ErrNoInputFiles when nothing matches, or the context error when the
//     run was cancelled.
func (p *Processor) Run(ctx context.Context, month Month) (*Result, error) {
	start := p.now()
	runID := p.newRunID()
	logger := p.logger.With("run_id", runID)

	files, err := ListInputCSVs(p.cfg.InputDir, month)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoInputFiles, month, p.cfg.InputDir)
	}

	logger.Info("processing started", "month", month.String(), "files", len(files))

	limit := p.cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}

	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.ProcessFile(gctx, file)
			return results[i].contextErr()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		Month:     month,
		StartedAt: start,
		Files:     results,
		Totals:    aggregator.New(),
	}

	for i := range results {
		fr := &results[i]
		if fr.Err == nil {
			if err := result.Totals.Merge(fr.Totals); err != nil {
				fr.Err = fmt.Errorf("merge totals: %w", err)
			}
		}
		if fr.Err != nil {
			logger.Error("file failed", "file", filepath.Base(fr.FilePath), "error", fr.Err)
			continue
		}
		result.Records = append(result.Records, fr.Records...)
		result.Rejections = append(result.Rejections, fr.Rejections...)

		logger.Info("file processed",
			"file", filepath.Base(fr.FilePath),
			"store", fr.Store,
			"accepted", fr.Stats.RowsAccepted,
			"rejected", fr.Stats.RowsRejected,
		)
	}

	result.Elapsed = p.now().Sub(start)

	logger.Info("processing finished",
		"accepted", len(result.Records),
		"rejected", len(result.Rejections),
		"failed_files", len(result.FailedFiles()),
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// ProcessFile normalizes and aggregates one input file.
func (p *Processor) ProcessFile(ctx context.Context, path string) FileResult {
	start := p.now()
	name := filepath.Base(path)

	fr := FileResult{
		FilePath: path,
		Store:    InferStoreName(path),
	}

	records, rejections, totals, err := p.readFile(ctx, path, name, fr.Store)
	if err != nil {
		fr.Err = err
		fr.Stats.ProcessingTime = p.now().Sub(start)
		return fr
	}

	fr.Records = records
	fr.Rejections = rejections
	fr.Totals = totals
	fr.Stats = ProcessingStats{
		RowsProcessed:  len(records) + len(rejections),
		RowsAccepted:   len(records),
		RowsRejected:   len(rejections),
		ProcessingTime: p.now().Sub(start),
	}

	p.logger.Debug("file read", "file", name, "rows", fr.Stats.RowsProcessed)
	return fr
}

// readFile streams one file. A row whose amount would push a running total
// out of int64 is rejected like any other invalid row.
func (p *Processor) readFile(ctx context.Context, path, name, store string) ([]types.NormalizedRecord, []types.Rejection, aggregator.Totals, error) {
	totals := aggregator.New()

	parser, err := csvparser.NewStreamingParser(path, p.cfg.CSVSettingsFor(path))
	if err != nil {
		return nil, nil, totals, err
	}
	defer parser.Close()

	if headers := parser.Headers(); headers != nil {
		for _, f := range normalizer.MissingFields(headers) {
			p.logger.Warn("column not found, rows will be rejected",
				"file", name,
				"field", f.String(),
				"accepted_headers", normalizer.Synonyms(f),
			)
		}
	}

	var (
		records    []types.NormalizedRecord
		rejections []types.Rejection
	)

	reject := func(rec csvparser.Record, err error) {
		rejections = append(rejections, types.Rejection{
			File:   name,
			Line:   rec.Line,
			Store:  store,
			Reason: err.Error(),
			Raw:    rec.Raw,
		})
	}

	for parser.Next() {
		if err := ctx.Err(); err != nil {
			return nil, nil, totals, err
		}

		rec := parser.Record()
		row, err := normalizer.Normalize(rec.Raw, store)
		if err != nil {
			reject(rec, err)
			continue
		}
		if err := totals.Add(row); err != nil {
			reject(rec, err)
			continue
		}
		records = append(records, row)
	}

	if err := parser.Err(); err != nil {
		return nil, nil, totals, err
	}
	return records, rejections, totals, nil
}

// contextErr reports cancellation so the errgroup stops scheduling files.
// Read errors stay inside the FileResult.
func (fr FileResult) contextErr() error {
	if errors.Is(fr.Err, context.Canceled) || errors.Is(fr.Err, context.DeadlineExceeded) {
		return fr.Err
	}
	return nil
}
