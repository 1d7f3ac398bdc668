package aggregator

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ginjaninja78/csv-invoice-tool/internal/types"
)

func sampleRecords() []types.NormalizedRecord {
	return []types.NormalizedRecord{
		{Date: "2026-01-01", Store: "A", Item: "X", Quantity: 1, Amount: 100},
		{Date: "2026-01-02", Store: "A", Item: "Y", Quantity: 2, Amount: 250},
		{Date: "2026-01-03", Store: "B", Item: "X", Quantity: 1, Amount: 50},
	}
}

func mustAggregate(t *testing.T, records []types.NormalizedRecord) Totals {
	t.Helper()
	totals, err := Aggregate(records)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	return totals
}

func TestAggregate(t *testing.T) {
	got := mustAggregate(t, sampleRecords())

	wantStore := map[string]int64{"A": 350, "B": 50}
	wantItem := map[string]int64{"X": 150, "Y": 250}

	if !reflect.DeepEqual(got.ByStore, wantStore) {
		t.Errorf("ByStore = %v, want %v", got.ByStore, wantStore)
	}
	if !reflect.DeepEqual(got.ByItem, wantItem) {
		t.Errorf("ByItem = %v, want %v", got.ByItem, wantItem)
	}
}

func TestAggregate_Empty(t *testing.T) {
	for _, input := range [][]types.NormalizedRecord{nil, {}} {
		got := mustAggregate(t, input)
		if got.ByStore == nil || got.ByItem == nil {
			t.Fatalf("Aggregate(%v) returned nil maps", input)
		}
		if len(got.ByStore) != 0 || len(got.ByItem) != 0 {
			t.Errorf("Aggregate(%v) = %+v, want empty", input, got)
		}
		if got.Sum() != 0 {
			t.Errorf("Sum() = %d, want 0", got.Sum())
		}
	}
}

func TestAggregate_Conservation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	stores := []string{"A", "B", "C", "store a"}
	items := []string{"X", "Y", "Z", "コーヒー"}

	var records []types.NormalizedRecord
	var want int64
	for i := 0; i < 500; i++ {
		amount := rng.Int63n(20000) - 1000
		records = append(records, types.NormalizedRecord{
			Date:     "2026-01-01",
			Store:    stores[rng.Intn(len(stores))],
			Item:     items[rng.Intn(len(items))],
			Quantity: rng.Int63n(10),
			Amount:   amount,
		})
		want += amount
	}

	got := mustAggregate(t, records)

	var byItem int64
	for _, v := range got.ByItem {
		byItem += v
	}
	if got.Sum() != want {
		t.Errorf("sum by store = %d, want %d", got.Sum(), want)
	}
	if byItem != want {
		t.Errorf("sum by item = %d, want %d", byItem, want)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	records := sampleRecords()
	records = append(records,
		types.NormalizedRecord{Store: "C", Item: "Z", Amount: 7},
		types.NormalizedRecord{Store: "A", Item: "Z", Amount: 3},
	)
	want := mustAggregate(t, records)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]types.NormalizedRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := mustAggregate(t, shuffled)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("permutation %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestMerge_EqualsSinglePass(t *testing.T) {
	records := sampleRecords()
	want := mustAggregate(t, records)

	shardA := mustAggregate(t, records[:1])
	shardB := mustAggregate(t, records[1:])

	var merged Totals
	if err := merged.Merge(shardB); err != nil {
		t.Fatal(err)
	}
	if err := merged.Merge(shardA); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(merged, want) {
		t.Errorf("merged = %+v, want %+v", merged, want)
	}
}

func TestAdd_ZeroValue(t *testing.T) {
	var totals Totals
	if err := totals.Add(types.NormalizedRecord{Store: "A", Item: "X", Amount: 10}); err != nil {
		t.Fatal(err)
	}

	if totals.ByStore["A"] != 10 || totals.ByItem["X"] != 10 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestSortedViews(t *testing.T) {
	totals := mustAggregate(t, []types.NormalizedRecord{
		{Store: "b", Item: "z", Amount: 1},
		{Store: "B", Item: "a", Amount: 2},
		{Store: "a", Item: "m", Amount: 3},
	})

	wantStores := []Entry{{Key: "B", Total: 2}, {Key: "a", Total: 3}, {Key: "b", Total: 1}}
	wantItems := []Entry{{Key: "a", Total: 2}, {Key: "m", Total: 3}, {Key: "z", Total: 1}}

	if got := totals.Stores(); !reflect.DeepEqual(got, wantStores) {
		t.Errorf("Stores() = %v, want %v", got, wantStores)
	}
	if got := totals.Items(); !reflect.DeepEqual(got, wantItems) {
		t.Errorf("Items() = %v, want %v", got, wantItems)
	}
}

func TestAggregate_OutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		records []types.NormalizedRecord
	}{
		{
			name: "store total overflows",
			records: []types.NormalizedRecord{
				{Store: "A", Item: "X", Amount: math.MaxInt64},
				{Store: "A", Item: "Y", Amount: 1},
			},
		},
		{
			name: "item total overflows",
			records: []types.NormalizedRecord{
				{Store: "A", Item: "X", Amount: math.MaxInt64},
				{Store: "B", Item: "X", Amount: 1},
			},
		},
		{
			name: "grand total overflows",
			records: []types.NormalizedRecord{
				{Store: "A", Item: "X", Amount: math.MaxInt64},
				{Store: "B", Item: "Y", Amount: 1},
			},
		},
		{
			name: "negative total underflows",
			records: []types.NormalizedRecord{
				{Store: "A", Item: "X", Amount: math.MinInt64},
				{Store: "A", Item: "X", Amount: -1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.records)
			if !errors.Is(err, ErrTotalOutOfRange) {
				t.Errorf("Aggregate() error = %v, want %v", err, ErrTotalOutOfRange)
			}
		})
	}
}

func TestAdd_OutOfRangeLeavesTotals(t *testing.T) {
	totals := mustAggregate(t, []types.NormalizedRecord{
		{Store: "A", Item: "X", Amount: math.MaxInt64 - 10},
	})
	want := mustAggregate(t, []types.NormalizedRecord{
		{Store: "A", Item: "X", Amount: math.MaxInt64 - 10},
	})

	err := totals.Add(types.NormalizedRecord{Store: "B", Item: "Y", Amount: 11})
	if !errors.Is(err, ErrTotalOutOfRange) {
		t.Fatalf("Add() error = %v, want %v", err, ErrTotalOutOfRange)
	}
	if !reflect.DeepEqual(totals, want) {
		t.Errorf("totals after refused Add = %+v, want %+v", totals, want)
	}

	if err := totals.Add(types.NormalizedRecord{Store: "B", Item: "Y", Amount: 10}); err != nil {
		t.Errorf("Add() at the limit error = %v", err)
	}
	if got := totals.Sum(); got != math.MaxInt64 {
		t.Errorf("Sum() = %d, want %d", got, int64(math.MaxInt64))
	}
}

func TestMerge_OutOfRangeLeavesTotals(t *testing.T) {
	base := mustAggregate(t, []types.NormalizedRecord{
		{Store: "A", Item: "X", Amount: math.MaxInt64},
	})
	want := mustAggregate(t, []types.NormalizedRecord{
		{Store: "A", Item: "X", Amount: math.MaxInt64},
	})
	shard := mustAggregate(t, []types.NormalizedRecord{
		{Store: "B", Item: "Y", Amount: 5},
		{Store: "A", Item: "X", Amount: 1},
	})

	if err := base.Merge(shard); !errors.Is(err, ErrTotalOutOfRange) {
		t.Fatalf("Merge() error = %v, want %v", err, ErrTotalOutOfRange)
	}
	if !reflect.DeepEqual(base, want) {
		t.Errorf("totals after refused Merge = %+v, want %+v", base, want)
	}
}
