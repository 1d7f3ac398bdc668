package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/csv-invoice-tool/internal/logging"
)

// Renderer writes one invoice to a file.
type Renderer interface {
	// Ext is the file extension without the dot.
	Ext() string
	Render(inv Invoice, path string) error
}

// NewRenderer returns the renderer for format ("pdf" or "xlsx").
func NewRenderer(format string, s Settings) (Renderer, error) {
	switch format {
	case "", "pdf":
		return NewPDFRenderer(s), nil
	case "xlsx":
		return NewXLSXRenderer(s), nil
	default:
		return nil, fmt.Errorf("unknown invoice format %q", format)
	}
}

// Generated pairs an invoice with the file it was written to.
type Generated struct {
	Invoice Invoice
	Path    string
}

// GenerateAll renders every invoice into outDir, creating it if needed.
// It stops at the first failure and returns what was written so far.
func GenerateAll(ctx context.Context, r Renderer, invoices []Invoice, outDir string, logger *slog.Logger) ([]Generated, error) {
	if logger == nil {
		logger = logging.WithFields(ctx, "component", "invoice")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create invoices dir: %w", err)
	}

	if pr, ok := r.(*PDFRenderer); ok && len(invoices) > 0 {
		if err := pr.EnsureFontRegistered(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	out := make([]Generated, 0, len(invoices))
	numbers := make(map[string]string, len(invoices))
	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if other, ok := numbers[inv.Number]; ok && other != inv.BillTo {
			logger.Warn("invoice.number.shared", "number", inv.Number, "store", inv.BillTo, "other_store", other)
		}
		numbers[inv.Number] = inv.BillTo

		path := filepath.Join(outDir, FileName(inv.BillTo, inv.Month, r.Ext()))
		if err := r.Render(inv, path); err != nil {
			return out, fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
		logger.Debug("invoice.ok", "number", inv.Number, "store", inv.BillTo, "total", inv.Total, "path", path)
		out = append(out, Generated{Invoice: inv, Path: path})
	}

	logger.Info("invoices.done",
		"count", len(out),
		"dir", outDir,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
