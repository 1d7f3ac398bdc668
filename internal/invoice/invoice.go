// =============================================================================
// CSV Invoice Tool - Invoice Builder
// =============================================================================
//
// This module turns per-store totals into invoices and renders them.
//
// INVOICE CONTENT:
//   Number     INV-<YYYYMM>-<store, spaces replaced by underscores>
//   Issue date the run date (injected, so tests are stable)
//   Due date   issue date + payment_due_days
//   Subtotal   store total before tax
//   Tax        round(subtotal * tax_rate), computed in decimal
//   Total      subtotal + tax
//
// ROUNDING:
//   Half away from zero by default; banker's rounding (half to even) is
//   available through invoice.rounding. Amounts are whole yen.
//
// RENDERING:
//   PDF (default, needs a TrueType font with Japanese glyphs) or XLSX.
//   See pdf.go and xlsx.go.
//
// =============================================================================

package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ginjaninja78/csv-invoice-tool/internal/aggregator"
	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
)

// DateLayout is the layout of printed dates.
const DateLayout = "2006-01-02"

// =============================================================================
// ROUNDING
// =============================================================================

// Rounding selects how fractional tax is rounded to whole yen.
type Rounding int

const (
	// RoundHalfAwayFromZero rounds 0.5 up for positive and down for negative amounts.
	RoundHalfAwayFromZero Rounding = iota
	// RoundHalfEven rounds 0.5 to the nearest even integer.
	RoundHalfEven
)

// ParseRounding maps the config value to a Rounding.
func ParseRounding(s string) (Rounding, error) {
	switch s {
	case "", "half_away_from_zero":
		return RoundHalfAwayFromZero, nil
	case "half_even":
		return RoundHalfEven, nil
	default:
		return 0, fmt.Errorf("unknown rounding mode %q", s)
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings holds what invoice building and rendering need from config.
type Settings struct {
	TaxRate        decimal.Decimal
	Rounding       Rounding
	PaymentDueDays int

	Issuer config.IssuerConfig
	Bank   config.BankConfig
	Notes  string
	Footer string

	FontPath  string
	LogoPath  string
	LogoWidth float64
}

// SettingsFromConfig converts the invoice block of config.yaml.
func SettingsFromConfig(c config.InvoiceConfig) (Settings, error) {
	rounding, err := ParseRounding(c.Rounding)
	if err != nil {
		return Settings{}, err
	}
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return Settings{}, fmt.Errorf("tax rate %q: %w", c.TaxRate, err)
	}

	return Settings{
		TaxRate:        rate,
		Rounding:       rounding,
		PaymentDueDays: c.DueDays(),
		Issuer:         c.Issuer,
		Bank:           c.Bank,
		Notes:          c.Notes,
		Footer:         c.Footer,
		FontPath:       c.FontPath,
		LogoPath:       c.LogoPath,
		LogoWidth:      c.LogoWidth,
	}, nil
}

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is one store's bill for a month. Amounts are whole yen.
type Invoice struct {
	Number    string
	Month     string // YYYYMM
	BillTo    string
	IssueDate time.Time
	DueDate   time.Time
	Subtotal  int64
	TaxRate   decimal.Decimal
	Tax       int64
	Total     int64
}

// CalcTax returns subtotal * rate rounded to whole yen.
func CalcTax(subtotal int64, rate decimal.Decimal, mode Rounding) int64 {
	tax := decimal.NewFromInt(subtotal).Mul(rate)
	switch mode {
	case RoundHalfEven:
		tax = tax.RoundBank(0)
	default:
		tax = tax.Round(0)
	}
	return tax.IntPart()
}

// Number returns the invoice number for a store and a YYYYMM month.
func Number(store, month string) string {
	return fmt.Sprintf("INV-%s-%s", month, strings.ReplaceAll(store, " ", "_"))
}

// FileName returns the output file name, e.g. invoice_store_a_202601.pdf.
func FileName(store, month, ext string) string {
	return fmt.Sprintf("invoice_%s_%s.%s", store, month, ext)
}

// Build creates one invoice per entry, in entry order.
//
// PARAMETERS:
//   - entries: per-store subtotals (summary_by_store.csv)
//   - month: billing month as YYYYMM
//   - issued: the issue date; only its calendar date is used
//   - s: tax rate, rounding and payment terms
func Build(entries []aggregator.Entry, month string, issued time.Time, s Settings) []Invoice {
	issueDate := time.Date(issued.Year(), issued.Month(), issued.Day(), 0, 0, 0, 0, time.UTC)
	dueDate := issueDate.AddDate(0, 0, s.PaymentDueDays)

	invoices := make([]Invoice, 0, len(entries))
	for _, e := range entries {
		tax := CalcTax(e.Total, s.TaxRate, s.Rounding)
		invoices = append(invoices, Invoice{
			Number:    Number(e.Key, month),
			Month:     month,
			BillTo:    e.Key,
			IssueDate: issueDate,
			DueDate:   dueDate,
			Subtotal:  e.Total,
			TaxRate:   s.TaxRate,
			Tax:       tax,
			Total:     e.Total + tax,
		})
	}
	return invoices
}

// =============================================================================
// FORMATTING
// =============================================================================

var yenPrinter = message.NewPrinter(language.Japanese)

// Yen formats an amount with thousands separators, e.g. "1,500 円".
func Yen(n int64) string {
	return yenPrinter.Sprintf("%d 円", n)
}

// TaxLabel returns the tax row label, e.g. "消費税（10%）".
func TaxLabel(rate decimal.Decimal) string {
	return fmt.Sprintf("消費税（%s%%）", rate.Shift(2).String())
}

// Label rows shared by the renderers.
const (
	labelItem     = "項目"
	labelAmount   = "金額"
	labelSubtotal = "小計（税抜）"
	labelTotal    = "合計（税込）"
	labelDue      = "支払期限"
	labelBank     = "振込先"
	labelHolder   = "口座名義"
)

// bankLine joins the transfer destination, e.g. "サンプル銀行 本店 / 普通 1234567".
func bankLine(b config.BankConfig) string {
	return fmt.Sprintf("%s %s / %s", b.Name, b.Branch, b.Account)
}
