package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/csv-invoice-tool/internal/aggregator"
	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/csvparser"
)

// LoadSummaryByStore reads a summary_by_store.csv back into entries, in file
// order. Rows with an empty store or total are skipped; a total that is not
// an integer is an error.
func LoadSummaryByStore(path string) ([]aggregator.Entry, error) {
	records, err := csvparser.ReadAll(path, config.CSVSettings{})
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}

	var entries []aggregator.Entry
	for _, rec := range records {
		store := strings.TrimSpace(rec.Raw.Get("store"))
		total := strings.TrimSpace(rec.Raw.Get("total_amount"))
		if store == "" || total == "" {
			continue
		}

		n, err := strconv.ParseInt(total, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("read summary: line %d: total_amount %q is not an integer", rec.Line, total)
		}
		entries = append(entries, aggregator.Entry{Key: store, Total: n})
	}
	return entries, nil
}
