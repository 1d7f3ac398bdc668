package types

import "testing"

func TestRawRecordGet(t *testing.T) {
	rec := RawRecord{
		{Column: "date", Value: "2026-01-01"},
		{Column: "item", Value: "first"},
		{Column: "item", Value: "second"},
	}

	tests := []struct {
		name string
		col  string
		want string
	}{
		{name: "single column", col: "date", want: "2026-01-01"},
		{name: "duplicate column returns last", col: "item", want: "second"},
		{name: "absent column is empty", col: "amount", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.Get(tt.col); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.col, got, tt.want)
			}
		})
	}
}

func TestFromMapIsSorted(t *testing.T) {
	rec := FromMap(map[string]string{"b": "2", "a": "1", "c": "3"})

	want := []string{"a", "b", "c"}
	if len(rec) != len(want) {
		t.Fatalf("len = %d, want %d", len(rec), len(want))
	}
	for i, col := range want {
		if rec[i].Column != col {
			t.Errorf("rec[%d].Column = %q, want %q", i, rec[i].Column, col)
		}
	}
}

func TestRawRecordString(t *testing.T) {
	rec := RawRecord{
		{Column: "日付", Value: "2026/01/05"},
		{Column: "amount", Value: "1,500"},
	}

	want := `{"日付": "2026/01/05", "amount": "1,500"}`
	if got := rec.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}

	if got := (RawRecord{}).String(); got != "{}" {
		t.Errorf("empty String() = %s, want {}", got)
	}
}
