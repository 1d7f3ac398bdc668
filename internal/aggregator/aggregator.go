// =============================================================================
// CSV Invoice Tool - Aggregator
// =============================================================================
//
// Sums accepted sales amounts per store and per item.
//
// Addition is commutative, so the totals do not depend on input order. The
// pipeline uses this to aggregate each file independently and merge the
// shards afterwards.
//
// Every total, including the grand total, must fit in int64. An addition
// that would overflow is refused with ErrTotalOutOfRange and leaves the
// totals unchanged.
//
// =============================================================================

package aggregator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ginjaninja78/csv-invoice-tool/internal/types"
)

// ErrTotalOutOfRange is returned when a sum would overflow int64.
var ErrTotalOutOfRange = errors.New("amount total out of range")

// Totals holds amount sums keyed by store and by item.
type Totals struct {
	ByStore map[string]int64
	ByItem  map[string]int64
}

// Entry is one key/total pair of a sorted view.
type Entry struct {
	Key   string
	Total int64
}

// New returns empty totals ready for Add.
func New() Totals {
	return Totals{
		ByStore: make(map[string]int64),
		ByItem:  make(map[string]int64),
	}
}

// Aggregate sums the amounts of records by store and by item.
// An empty slice yields empty (non-nil) maps. It stops at the first record
// whose amount would overflow a total.
func Aggregate(records []types.NormalizedRecord) (Totals, error) {
	t := New()
	for _, rec := range records {
		if err := t.Add(rec); err != nil {
			return t, err
		}
	}
	return t, nil
}

// Add accumulates one record. On overflow t is left unchanged.
func (t *Totals) Add(rec types.NormalizedRecord) error {
	t.ensure()
	store, ok := addInt64(t.ByStore[rec.Store], rec.Amount)
	if !ok {
		return fmt.Errorf("%w: store %q", ErrTotalOutOfRange, rec.Store)
	}
	item, ok := addInt64(t.ByItem[rec.Item], rec.Amount)
	if !ok {
		return fmt.Errorf("%w: item %q", ErrTotalOutOfRange, rec.Item)
	}
	if _, ok := addInt64(t.Sum(), rec.Amount); !ok {
		return fmt.Errorf("%w: grand total", ErrTotalOutOfRange)
	}
	t.ByStore[rec.Store] = store
	t.ByItem[rec.Item] = item
	return nil
}

// Merge adds every total of other into t. On overflow t is left unchanged.
func (t *Totals) Merge(other Totals) error {
	t.ensure()
	stores, err := mergeMap(t.ByStore, other.ByStore, "store")
	if err != nil {
		return err
	}
	items, err := mergeMap(t.ByItem, other.ByItem, "item")
	if err != nil {
		return err
	}
	if _, ok := addInt64(t.Sum(), other.Sum()); !ok {
		return fmt.Errorf("%w: grand total", ErrTotalOutOfRange)
	}
	for k, v := range stores {
		t.ByStore[k] = v
	}
	for k, v := range items {
		t.ByItem[k] = v
	}
	return nil
}

// mergeMap computes the merged values of the keys in src without touching dst.
func mergeMap(dst, src map[string]int64, kind string) (map[string]int64, error) {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		sum, ok := addInt64(dst[k], v)
		if !ok {
			return nil, fmt.Errorf("%w: %s %q", ErrTotalOutOfRange, kind, k)
		}
		out[k] = sum
	}
	return out, nil
}

// addInt64 returns a+b, or false when the sum does not fit in int64.
func addInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

func (t *Totals) ensure() {
	if t.ByStore == nil {
		t.ByStore = make(map[string]int64)
	}
	if t.ByItem == nil {
		t.ByItem = make(map[string]int64)
	}
}

// Stores returns per-store totals sorted by store label.
func (t Totals) Stores() []Entry {
	return sorted(t.ByStore)
}

// Items returns per-item totals sorted by item name.
func (t Totals) Items() []Entry {
	return sorted(t.ByItem)
}

// Sum returns the grand total. ByStore and ByItem always agree on it, and
// Add and Merge keep it within int64.
func (t Totals) Sum() int64 {
	var sum int64
	for _, v := range t.ByStore {
		sum += v
	}
	return sum
}

func sorted(m map[string]int64) []Entry {
	entries := make([]Entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, Entry{Key: k, Total: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}
