package normalizer

import (
	"sort"
	"strings"
)

// =============================================================================
// CANONICAL FIELDS
// =============================================================================

// Field is the closed set of canonical columns a sales row is reduced to.
type Field int

const (
	// FieldUnknown marks a column that maps to nothing; such columns are dropped.
	FieldUnknown Field = iota
	FieldDate
	FieldItem
	FieldPrice
	FieldQuantity
	FieldAmount

	fieldCount
)

// String returns the canonical column name.
func (f Field) String() string {
	switch f {
	case FieldDate:
		return "date"
	case FieldItem:
		return "item"
	case FieldPrice:
		return "price"
	case FieldQuantity:
		return "quantity"
	case FieldAmount:
		return "amount"
	default:
		return "unknown"
	}
}

// =============================================================================
// COLUMN SYNONYMS
// =============================================================================

// synonyms maps every accepted raw header to its canonical field. Matching
// is exact and case-sensitive; only surrounding whitespace is ignored.
var synonyms = map[string]Field{
	"date": FieldDate,
	"day":  FieldDate,
	"日付":   FieldDate,

	"product":   FieldItem,
	"item_name": FieldItem,
	"商品名":       FieldItem,

	"price": FieldPrice,
	"単価":    FieldPrice,

	"quantity": FieldQuantity,
	"数量":       FieldQuantity,

	"amount": FieldAmount,
	"金額":     FieldAmount,
}

// Reconcile returns the canonical field a raw column name stands for, or
// FieldUnknown when the name is not a known synonym.
func Reconcile(column string) Field {
	if f, ok := synonyms[strings.TrimSpace(column)]; ok {
		return f
	}
	return FieldUnknown
}

// Synonyms returns the raw header names accepted for a canonical field,
// sorted for stable output.
func Synonyms(f Field) []string {
	var names []string
	for name, field := range synonyms {
		if field == f {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MissingFields lists the fields a file with this header can never supply,
// so every one of its rows will be rejected. Price stands in for amount, so
// FieldAmount is reported only when both are absent.
func MissingFields(headers []string) []Field {
	var present [fieldCount]bool
	for _, h := range headers {
		present[Reconcile(h)] = true
	}

	var missing []Field
	for _, f := range []Field{FieldDate, FieldItem, FieldQuantity} {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	if !present[FieldAmount] && !present[FieldPrice] {
		missing = append(missing, FieldAmount)
	}
	return missing
}
