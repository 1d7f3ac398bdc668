package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-pdf/fpdf"
)

// ErrFontNotFound is returned when the configured TrueType font is missing.
var ErrFontNotFound = errors.New("invoice font not found")

// ErrFontUnsupported is returned when the font file is not TrueType.
var ErrFontUnsupported = errors.New("invoice font is not a TrueType font")

// TrueType sfnt versions. OpenType CFF ("OTTO") and collections ("ttcf")
// cannot be embedded.
var trueTypeMagics = [][]byte{{0x00, 0x01, 0x00, 0x00}, []byte("true")}

const (
	fontFamily = "invoice"

	pageMargin = 40.0
	pageWidth  = 595.28 // A4 in points
	bodyWidth  = pageWidth - 2*pageMargin

	leftColWidth  = 280.0
	rightColWidth = bodyWidth - leftColWidth
	tableLabelW   = 300.0
	tableValueW   = 150.0
	payLabelW     = 90.0
	payValueW     = 360.0
)

// PDFRenderer draws invoices on A4 pages with an embedded Japanese font.
type PDFRenderer struct {
	settings Settings

	fontOnce sync.Once
	fontData []byte
	fontErr  error
}

// NewPDFRenderer returns a renderer using s for issuer, bank and font settings.
func NewPDFRenderer(s Settings) *PDFRenderer {
	return &PDFRenderer{settings: s}
}

// Ext returns "pdf".
func (r *PDFRenderer) Ext() string { return "pdf" }

// EnsureFontRegistered loads and checks the font file once. Later calls
// return the first result.
func (r *PDFRenderer) EnsureFontRegistered() error {
	r.fontOnce.Do(func() {
		data, err := os.ReadFile(r.settings.FontPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			r.fontErr = fmt.Errorf("%w: %s", ErrFontNotFound, r.settings.FontPath)
		case err != nil:
			r.fontErr = fmt.Errorf("read font %s: %w", r.settings.FontPath, err)
		case !isTrueType(data):
			r.fontErr = fmt.Errorf("%w: %s", ErrFontUnsupported, r.settings.FontPath)
		default:
			r.fontData = data
		}
	})
	return r.fontErr
}

func isTrueType(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	for _, magic := range trueTypeMagics {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}
	return false
}

// Render writes inv to path.
func (r *PDFRenderer) Render(inv Invoice, path string) error {
	if err := r.EnsureFontRegistered(); err != nil {
		return err
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCreationDate(inv.IssueDate)
	pdf.SetTitle(inv.Number, true)
	pdf.SetAuthor(r.settings.Issuer.Name, true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", r.fontData)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", r.fontData)
	// A font fpdf cannot parse is silently skipped; selecting it surfaces that.
	pdf.SetFont(fontFamily, "", 10)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFontUnsupported, r.settings.FontPath, err)
	}
	pdf.AddPage()

	r.drawHeader(pdf, inv)
	r.drawBillTo(pdf, inv)
	r.drawAmounts(pdf, inv)
	r.drawPayment(pdf, inv)
	r.drawNotes(pdf)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return nil
}

// drawHeader lays out issuer details on the left and invoice metadata on the
// right, then a grey rule.
func (r *PDFRenderer) drawHeader(pdf *fpdf.Fpdf, inv Invoice) {
	issuer := r.settings.Issuer
	top := pdf.GetY()

	y := top
	if h := r.drawLogo(pdf, pageMargin, y); h > 0 {
		y += h + 6
	}
	pdf.SetXY(pageMargin, y)
	pdf.SetFont(fontFamily, "B", 11)
	pdf.CellFormat(leftColWidth, 16, issuer.Name, "", 2, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	for _, line := range []string{issuer.Address, "TEL: " + issuer.Tel, "Email: " + issuer.Email} {
		pdf.CellFormat(leftColWidth, 13, line, "", 2, "L", false, 0, "")
	}
	leftBottom := pdf.GetY()

	x := pageMargin + leftColWidth
	pdf.SetXY(x, top)
	pdf.SetFont(fontFamily, "B", 20)
	pdf.CellFormat(rightColWidth, 26, "INVOICE", "", 2, "R", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	for _, line := range []string{
		"Invoice No: " + inv.Number,
		"Issue Date: " + inv.IssueDate.Format(DateLayout),
		"Due Date: " + inv.DueDate.Format(DateLayout),
	} {
		pdf.SetX(x)
		pdf.CellFormat(rightColWidth, 14, line, "", 2, "R", false, 0, "")
	}

	pdf.SetY(max(leftBottom, pdf.GetY()) + 10)
	pdf.SetDrawColor(128, 128, 128)
	pdf.SetLineWidth(0.5)
	pdf.Line(pageMargin, pdf.GetY(), pageMargin+bodyWidth, pdf.GetY())
	pdf.Ln(14)
}

// drawLogo places the logo when the file exists and returns its height.
func (r *PDFRenderer) drawLogo(pdf *fpdf.Fpdf, x, y float64) float64 {
	path := r.settings.LogoPath
	if path == "" || r.settings.LogoWidth <= 0 {
		return 0
	}
	if _, err := os.Stat(path); err != nil {
		return 0
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
	default:
		return 0
	}

	opts := fpdf.ImageOptions{ReadDpi: true}
	info := pdf.RegisterImageOptions(path, opts)
	if info == nil || info.Width() == 0 {
		return 0
	}
	w := r.settings.LogoWidth
	h := info.Height() * w / info.Width()
	pdf.ImageOptions(path, x, y, w, h, false, opts, 0, "")
	return h
}

func (r *PDFRenderer) drawBillTo(pdf *fpdf.Fpdf, inv Invoice) {
	pdf.SetFont(fontFamily, "B", 11)
	pdf.CellFormat(bodyWidth, 16, "Bill To", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 13)
	pdf.CellFormat(bodyWidth, 18, inv.BillTo+" 御中", "", 1, "L", false, 0, "")
	pdf.Ln(12)
}

// drawAmounts renders the right-aligned subtotal/tax/total table.
func (r *PDFRenderer) drawAmounts(pdf *fpdf.Fpdf, inv Invoice) {
	x := pageMargin + bodyWidth - tableLabelW - tableValueW
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetLineWidth(0.25)

	row := func(label, value string, size float64, fill bool) {
		pdf.SetX(x)
		pdf.SetFont(fontFamily, "", size)
		pdf.CellFormat(tableLabelW, 20, label, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(tableValueW, 20, value, "1", 1, "R", fill, 0, "")
	}

	pdf.SetFillColor(211, 211, 211)
	pdf.SetX(x)
	pdf.SetFont(fontFamily, "B", 10)
	pdf.CellFormat(tableLabelW, 20, labelItem, "1", 0, "L", true, 0, "")
	pdf.CellFormat(tableValueW, 20, labelAmount, "1", 1, "R", true, 0, "")

	row(labelSubtotal, Yen(inv.Subtotal), 10, false)
	row(TaxLabel(inv.TaxRate), Yen(inv.Tax), 10, false)
	pdf.SetFillColor(245, 245, 245)
	row(labelTotal, Yen(inv.Total), 12, true)
	pdf.Ln(16)
}

func (r *PDFRenderer) drawPayment(pdf *fpdf.Fpdf, inv Invoice) {
	bank := r.settings.Bank
	pdf.SetFont(fontFamily, "B", 11)
	pdf.CellFormat(bodyWidth, 16, "Payment Information", "", 1, "L", false, 0, "")

	rows := [][2]string{
		{labelDue, inv.DueDate.Format(DateLayout)},
		{labelBank, bankLine(bank)},
		{labelHolder, bank.AccountName},
	}
	for _, kv := range rows {
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(96, 96, 96)
		pdf.CellFormat(payLabelW, 15, kv[0], "", 0, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont(fontFamily, "", 10)
		pdf.CellFormat(payValueW, 15, kv[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(12)
}

func (r *PDFRenderer) drawNotes(pdf *fpdf.Fpdf) {
	if r.settings.Notes != "" {
		pdf.SetFont(fontFamily, "", 9)
		pdf.MultiCell(bodyWidth, 13, r.settings.Notes, "", "L", false)
		pdf.Ln(10)
	}
	if r.settings.Footer != "" {
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(bodyWidth, 12, r.settings.Footer, "", 1, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
}
