// =============================================================================
// CSV Invoice Tool - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - csvparser   (produces RawRecord)
//   - normalizer  (consumes RawRecord, produces NormalizedRecord)
//   - aggregator  (consumes NormalizedRecord)
//   - pipeline    (produces Rejection)
//   - report, store
//
// =============================================================================

package types

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// RAW RECORDS
// =============================================================================

// Field is a single (column, value) pair as read from an input line.
type Field struct {
	Column string
	Value  string
}

// RawRecord is one input line as an ordered list of column/value pairs.
//
// The order is the header order of the source file. Keeping it (rather than
// a Go map) makes "later column wins" deterministic when two columns map to
// the same canonical field. Absent columns read as the empty string.
type RawRecord []Field

// FromMap builds a RawRecord from a map. Keys are sorted so the result does
// not depend on map iteration order.
func FromMap(m map[string]string) RawRecord {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rec := make(RawRecord, 0, len(keys))
	for _, k := range keys {
		rec = append(rec, Field{Column: k, Value: m[k]})
	}
	return rec
}

// Get returns the value of the last column named col, or "" if absent.
func (r RawRecord) Get(col string) string {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i].Column == col {
			return r[i].Value
		}
	}
	return ""
}

// String renders the record for diagnostic output, e.g.
// {"date": "2026-01-05", "item": "Coffee"}.
func (r RawRecord) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %q", f.Column, f.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// =============================================================================
// NORMALIZED RECORDS
// =============================================================================

// NormalizedRecord is a validated sales line. Instances only exist when every
// validation rule passed; treat them as immutable values.
type NormalizedRecord struct {
	// Date is the sale date in YYYY-MM-DD form.
	Date string

	// Store is the billing counterpart label supplied by the caller,
	// never taken from row content.
	Store string

	// Item is the non-empty product name.
	Item string

	// Quantity is a non-negative unit count.
	Quantity int64

	// Amount is the line amount in whole yen.
	Amount int64
}

// =============================================================================
// REJECTIONS
// =============================================================================

// Rejection describes an input line that failed normalization.
type Rejection struct {
	// File is the base name of the originating file.
	File string

	// Line is the 2-based line number (line 1 is the header).
	Line int

	// Store is the store label assigned to the file.
	Store string

	// Reason is the human-readable rejection reason.
	Reason string

	// Raw is the original record as read.
	Raw RawRecord
}
