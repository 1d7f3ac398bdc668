package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook saves the tables as one XLSX workbook, one sheet per table in
// the given order. Integer cells are stored as numbers.
func WriteWorkbook(path string, tables []Table, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if len(tables) == 0 {
		return fmt.Errorf("xlsx: no tables")
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9D9D9"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}

	for i, t := range tables {
		sheet := t.Name
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("xlsx: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx: new sheet %q: %w", sheet, err)
		}

		if err := writeSheet(f, sheet, t); err != nil {
			return err
		}

		if err := styleHeader(f, sheet, len(t.Header), headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", path, err)
	}

	logger.Info("report.xlsx.ok",
		"path", path,
		"sheets", len(tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// styleHeader applies style to the first row and widens the used columns.
func styleHeader(f *excelize.File, sheet string, cols, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return fmt.Errorf("xlsx: %s header range: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("xlsx: %s header style: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return fmt.Errorf("xlsx: %s column width: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("xlsx: %s column width: %w", sheet, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t Table) error {
	for col, h := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx: %s header: %w", sheet, err)
		}
	}

	for r, row := range t.Rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("xlsx: %s row %d: %w", sheet, r+2, err)
			}
		}
	}
	return nil
}
