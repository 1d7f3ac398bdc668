// =============================================================================
// CSV Invoice Tool - Row Normalizer
// =============================================================================
//
// This module turns one raw sales row into a validated NormalizedRecord, or
// reports why it cannot. It is the only place that interprets row content.
//
// NORMALIZATION STEPS (fixed order, first failure wins):
//   1. Reconcile column names to canonical fields, drop unknown columns,
//      trim every value
//   2. Parse the date (YYYY-MM-DD, YYYY/MM/DD, YYYY.MM.DD)
//   3. Require a non-empty item
//   4. Parse the quantity as a non-negative integer
//   5. Parse the amount, or derive it as price * quantity (a product that
//      does not fit in int64 counts as uncomputable)
//   6. Attach the caller-supplied store label
//
// REJECTIONS:
//   A rejected row is a normal result, not a failure of the batch. Normalize
//   returns one of the Err* sentinels below and the caller records the row.
//
// NUMERIC SEMANTICS:
//   Integers only. Thousands separators are stripped and full-width digits
//   (common in Japanese exports) are folded to ASCII. Nothing is rounded here;
//   rounding belongs to tax computation.
//
// =============================================================================

package normalizer

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/ginjaninja78/csv-invoice-tool/internal/types"
)

// =============================================================================
// REJECTION REASONS
// =============================================================================

// Rejection reasons. The messages are written verbatim to errors.csv.
var (
	ErrDateInvalid        = errors.New("date invalid or empty")
	ErrItemEmpty          = errors.New("item is empty")
	ErrQuantityInvalid    = errors.New("quantity invalid or empty")
	ErrAmountUncomputable = errors.New("amount and price both invalid or empty (cannot compute)")
)

// =============================================================================
// DATE FORMATS
// =============================================================================

// dateLayouts are tried in order; the first successful parse wins.
// Month and day accept one or two digits.
var dateLayouts = []string{
	"2006-1-2", // YYYY-MM-DD
	"2006/1/2", // YYYY/MM/DD
	"2006.1.2", // YYYY.MM.DD
}

// OutputDateLayout is the layout of NormalizedRecord.Date.
const OutputDateLayout = "2006-01-02"

// =============================================================================
// NORMALIZE
// =============================================================================

// canonicalRow holds the trimmed value of each canonical field.
type canonicalRow [fieldCount]string

// Normalize validates one raw row and attaches the given store label.
//
// PARAMETERS:
//   - raw: The row as read, in header order.
//   - store: The store label assigned by the caller.
//
// RETURNS:
//   - The normalized record, when every rule passed.
//   - One of ErrDateInvalid, ErrItemEmpty, ErrQuantityInvalid or
//     ErrAmountUncomputable otherwise.
//
// Normalize is pure: the same input always yields the same output.
func Normalize(raw types.RawRecord, store string) (types.NormalizedRecord, error) {
	row := reconcileRow(raw)

	date, ok := ParseDate(row[FieldDate])
	if !ok {
		return types.NormalizedRecord{}, ErrDateInvalid
	}

	item := row[FieldItem]
	if item == "" {
		return types.NormalizedRecord{}, ErrItemEmpty
	}

	qty, ok := ParseInt(row[FieldQuantity])
	if !ok || qty < 0 {
		return types.NormalizedRecord{}, ErrQuantityInvalid
	}

	amount, ok := ParseInt(row[FieldAmount])
	if !ok {
		price, ok := ParseInt(row[FieldPrice])
		if !ok {
			return types.NormalizedRecord{}, ErrAmountUncomputable
		}
		amount, ok = mulInt64(price, qty)
		if !ok {
			return types.NormalizedRecord{}, ErrAmountUncomputable
		}
	}

	return types.NormalizedRecord{
		Date:     date,
		Store:    store,
		Item:     item,
		Quantity: qty,
		Amount:   amount,
	}, nil
}

// reconcileRow maps every known column to its canonical field. When several
// columns map to the same field the later one in header order wins.
func reconcileRow(raw types.RawRecord) canonicalRow {
	var row canonicalRow
	for _, f := range raw {
		field := Reconcile(f.Column)
		if field == FieldUnknown {
			continue
		}
		row[field] = strings.TrimSpace(f.Value)
	}
	return row
}

// =============================================================================
// VALUE PARSERS
// =============================================================================

// ParseDate parses a sales date and returns it as YYYY-MM-DD.
// It returns false for empty input or when no layout matches.
func ParseDate(value string) (string, bool) {
	value = strings.TrimSpace(width.Narrow.String(value))
	if value == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.Format(OutputDateLayout), true
		}
	}
	return "", false
}

// ParseInt parses an integer, ignoring thousands separators.
//
// EXAMPLES:
//   "1,500"   -> 1500
//   "１，５００" -> 1500
//   "-200"    -> -200
//   "12.5"    -> invalid
//   ""        -> invalid
func ParseInt(value string) (int64, bool) {
	value = strings.TrimSpace(width.Narrow.String(value))
	if value == "" {
		return 0, false
	}

	value = strings.ReplaceAll(value, ",", "")
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// mulInt64 returns a*b, or false when the product does not fit in int64.
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
