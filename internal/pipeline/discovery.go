package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrInvalidMonth is returned for a billing month not in YYYY-MM form.
var ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM")

const monthLayout = "2006-01"

// Month is a validated billing month.
type Month struct {
	t time.Time
}

// ParseMonth parses a billing month such as "2026-01".
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(monthLayout, s)
	if err != nil || len(s) != len(monthLayout) {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{t: t}, nil
}

// String returns the month as YYYY-MM.
func (m Month) String() string { return m.t.Format(monthLayout) }

// Compact returns the month as YYYYMM, as used in invoice numbers.
func (m Month) Compact() string { return m.t.Format("200601") }

// FileSuffix returns the month as YYYY_MM, as used in input file names.
func (m Month) FileSuffix() string { return m.t.Format("2006_01") }

// ListInputCSVs returns the input files for a month: regular files in dir
// named *_<YYYY>_<MM>.csv, sorted by name. A missing dir yields no files.
func ListInputCSVs(dir string, month Month) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	suffix := "_" + month.FileSuffix() + ".csv"

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			files = append(files, filepath.Join(dir, name))
		}
	}

	sort.Strings(files)
	return files, nil
}

// InferStoreName derives the store label from an input file name by dropping
// the trailing _<YYYY>_<MM> segments of the stem.
//
// EXAMPLES:
//   store_a_2026_01.csv    -> store_a
//   shibuya_2026_01.csv    -> shibuya
//   report.csv             -> report
//   a_b.csv                -> a_b (fewer than three segments)
func InferStoreName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")
	if len(parts) >= 3 {
		return strings.Join(parts[:len(parts)-2], "_")
	}
	return stem
}
