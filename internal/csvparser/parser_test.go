package csvparser

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/types"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestReadAll(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		settings config.CSVSettings
		want     []Record
	}{
		{
			name:    "utf8 with bom",
			content: "\ufeff日付,商品名,数量,金額\n2026/01/05,Coffee,3,\"1,500\"\n",
			want: []Record{
				{Line: 2, Raw: types.RawRecord{
					{Column: "日付", Value: "2026/01/05"},
					{Column: "商品名", Value: "Coffee"},
					{Column: "数量", Value: "3"},
					{Column: "金額", Value: "1,500"},
				}},
			},
		},
		{
			name:    "short and long rows",
			content: "date,product,amount\n2026-01-01,X\n2026-01-02,Y,100,extra\n",
			want: []Record{
				{Line: 2, Raw: types.RawRecord{
					{Column: "date", Value: "2026-01-01"},
					{Column: "product", Value: "X"},
					{Column: "amount", Value: ""},
				}},
				{Line: 3, Raw: types.RawRecord{
					{Column: "date", Value: "2026-01-02"},
					{Column: "product", Value: "Y"},
					{Column: "amount", Value: "100"},
				}},
			},
		},
		{
			name:    "blank lines do not consume line numbers",
			content: "date,product\n\n2026-01-01,X\n\n\n2026-01-02,Y\n",
			want: []Record{
				{Line: 2, Raw: types.RawRecord{{Column: "date", Value: "2026-01-01"}, {Column: "product", Value: "X"}}},
				{Line: 3, Raw: types.RawRecord{{Column: "date", Value: "2026-01-02"}, {Column: "product", Value: "Y"}}},
			},
		},
		{
			name:    "rows of empty cells are kept",
			content: "date,product\n,\n",
			want: []Record{
				{Line: 2, Raw: types.RawRecord{{Column: "date", Value: ""}, {Column: "product", Value: ""}}},
			},
		},
		{
			name:    "cells are not trimmed",
			content: "date, product\n 2026-01-01 ,Tea \n",
			want: []Record{
				{Line: 2, Raw: types.RawRecord{{Column: "date", Value: " 2026-01-01 "}, {Column: " product", Value: "Tea "}}},
			},
		},
		{
			name:     "tab delimiter",
			content:  "date\tamount\n2026-01-01\t1,000\n",
			settings: config.CSVSettings{Delimiter: "\\t"},
			want: []Record{
				{Line: 2, Raw: types.RawRecord{{Column: "date", Value: "2026-01-01"}, {Column: "amount", Value: "1,000"}}},
			},
		},
		{
			name:    "duplicate headers keep both cells",
			content: "product,商品名\nA,B\n",
			want: []Record{
				{Line: 2, Raw: types.RawRecord{{Column: "product", Value: "A"}, {Column: "商品名", Value: "B"}}},
			},
		},
		{
			name:    "header only",
			content: "date,product\n",
			want:    nil,
		},
		{
			name:    "empty file",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "store_a_2026_01.csv", []byte(tt.content))

			got, err := ReadAll(path, tt.settings)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadAll() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadAll_ShiftJIS(t *testing.T) {
	content, err := japanese.ShiftJIS.NewEncoder().String("日付,商品名,数量,金額\n2026/01/05,抹茶ラテ,2,900\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeFile(t, "sjis_2026_01.csv", []byte(content))

	got, err := ReadAll(path, config.CSVSettings{Encoding: "Shift_JIS"})
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if item := got[0].Raw.Get("商品名"); item != "抹茶ラテ" {
		t.Errorf("item = %q, want %q", item, "抹茶ラテ")
	}
}

func TestReadAll_EUCJP(t *testing.T) {
	content, err := japanese.EUCJP.NewEncoder().String("日付,商品名\n2026-01-05,珈琲\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeFile(t, "euc_2026_01.csv", []byte(content))

	got, err := ReadAll(path, config.CSVSettings{Encoding: "euc-jp"})
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != 1 || got[0].Raw.Get("商品名") != "珈琲" {
		t.Errorf("ReadAll() = %+v", got)
	}
}

func TestNewStreamingParser_Errors(t *testing.T) {
	if _, err := NewStreamingParser(filepath.Join(t.TempDir(), "missing.csv"), config.CSVSettings{}); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeFile(t, "a.csv", []byte("date\n"))
	_, err := NewStreamingParser(path, config.CSVSettings{Encoding: "latin-9000"})
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("error = %v, want %v", err, ErrUnsupportedEncoding)
	}
}

func TestNewReader_Headers(t *testing.T) {
	parser, err := NewReader(strings.NewReader("\ufeffdate;amount\n2026-01-01;5\n"), config.CSVSettings{Delimiter: ";"})
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer parser.Close()

	if want := []string{"date", "amount"}; !reflect.DeepEqual(parser.Headers(), want) {
		t.Errorf("Headers() = %v, want %v", parser.Headers(), want)
	}
	if !parser.Next() {
		t.Fatalf("Next() = false, err = %v", parser.Err())
	}
	if got := parser.Record().Raw.Get("amount"); got != "5" {
		t.Errorf("amount = %q, want %q", got, "5")
	}
	if parser.Next() {
		t.Error("Next() = true after last record")
	}
	if err := parser.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestDecoder(t *testing.T) {
	for _, name := range []string{"", "UTF-8", "utf8", "sjis", "CP932", "Shift_JIS", "EUC-JP"} {
		if _, err := Decoder(name); err != nil {
			t.Errorf("Decoder(%q) error = %v", name, err)
		}
	}
	if _, err := Decoder("ebcdic"); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("Decoder(ebcdic) error = %v", err)
	}
}
