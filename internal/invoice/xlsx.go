package invoice

import (
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding an XLSX invoice.
const SheetName = "請求書"

// yenFormat displays whole yen with separators, e.g. 1,500 円.
var yenFormat = `#,##0" 円"`

// XLSXRenderer writes invoices as single-sheet workbooks. No font file is
// needed.
type XLSXRenderer struct {
	settings Settings
}

// NewXLSXRenderer returns a renderer using s for issuer and bank details.
func NewXLSXRenderer(s Settings) *XLSXRenderer {
	return &XLSXRenderer{settings: s}
}

// Ext returns "xlsx".
func (r *XLSXRenderer) Ext() string { return "xlsx" }

type xlsxStyles struct {
	title, bold, header, money, total int
}

// Render writes inv to path. Amount cells hold numbers, not text.
func (r *XLSXRenderer) Render(inv Invoice, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("xlsx invoice: %w", err)
	}
	st, err := newXLSXStyles(f)
	if err != nil {
		return fmt.Errorf("xlsx invoice: styles: %w", err)
	}

	w := &sheetWriter{f: f, sheet: SheetName, row: 1}
	issuer := r.settings.Issuer
	bank := r.settings.Bank

	if r.addLogo(f) {
		w.row = 5
	}

	w.put(st.title, "INVOICE")
	w.row++
	w.pair("Invoice No", inv.Number, 0)
	w.pair("Issue Date", inv.IssueDate.Format(DateLayout), 0)
	w.pair("Due Date", inv.DueDate.Format(DateLayout), 0)
	w.row++

	w.put(st.bold, issuer.Name)
	w.put(0, issuer.Address)
	w.put(0, "TEL: "+issuer.Tel)
	w.put(0, "Email: "+issuer.Email)
	w.row++

	w.put(st.bold, "Bill To")
	w.put(0, inv.BillTo+" 御中")
	w.row++

	w.pairStyled(labelItem, labelAmount, st.header, st.header)
	w.pairStyled(labelSubtotal, inv.Subtotal, 0, st.money)
	w.pairStyled(TaxLabel(inv.TaxRate), inv.Tax, 0, st.money)
	w.pairStyled(labelTotal, inv.Total, st.bold, st.total)
	w.row++

	w.put(st.bold, "Payment Information")
	w.pair(labelDue, inv.DueDate.Format(DateLayout), 0)
	w.pair(labelBank, bankLine(bank), 0)
	w.pair(labelHolder, bank.AccountName, 0)
	w.row++

	if r.settings.Notes != "" {
		w.put(0, r.settings.Notes)
	}
	if r.settings.Footer != "" {
		w.put(0, r.settings.Footer)
	}
	if w.err != nil {
		return fmt.Errorf("xlsx invoice: %w", w.err)
	}

	if err := f.SetColWidth(SheetName, "A", "A", 24); err != nil {
		return fmt.Errorf("xlsx invoice: column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 36); err != nil {
		return fmt.Errorf("xlsx invoice: column width: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx invoice: save %s: %w", path, err)
	}
	return nil
}

// addLogo inserts the logo at A1 when it exists.
func (r *XLSXRenderer) addLogo(f *excelize.File) bool {
	if r.settings.LogoPath == "" {
		return false
	}
	if _, err := os.Stat(r.settings.LogoPath); err != nil {
		return false
	}
	err := f.AddPicture(SheetName, "A1", r.settings.LogoPath, &excelize.GraphicOptions{
		LockAspectRatio: true,
		Positioning:     "oneCell",
	})
	return err == nil
}

func newXLSXStyles(f *excelize.File) (xlsxStyles, error) {
	var st xlsxStyles
	var err error
	grey := excelize.Fill{Type: "pattern", Color: []string{"D3D3D3"}, Pattern: 1}
	light := excelize.Fill{Type: "pattern", Color: []string{"F5F5F5"}, Pattern: 1}

	if st.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 20}}); err != nil {
		return st, err
	}
	if st.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, err
	}
	if st.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Fill: grey}); err != nil {
		return st, err
	}
	if st.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &yenFormat}); err != nil {
		return st, err
	}
	st.total, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Size: 12},
		Fill:         light,
		CustomNumFmt: &yenFormat,
	})
	return st, err
}

// sheetWriter fills column A (and B for pairs) row by row and keeps the
// first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func (w *sheetWriter) set(col int, v any, style int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, w.row)
	if err == nil {
		err = w.f.SetCellValue(w.sheet, cell, v)
	}
	if err == nil && style != 0 {
		err = w.f.SetCellStyle(w.sheet, cell, cell, style)
	}
	w.err = err
}

func (w *sheetWriter) put(style int, v any) {
	w.set(1, v, style)
	w.row++
}

func (w *sheetWriter) pair(label string, v any, style int) {
	w.pairStyled(label, v, 0, style)
}

func (w *sheetWriter) pairStyled(label string, v any, labelStyle, valueStyle int) {
	w.set(1, label, labelStyle)
	w.set(2, v, valueStyle)
	w.row++
}
