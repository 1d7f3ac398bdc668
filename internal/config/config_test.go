package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingOptionalFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"), false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InputDir != "./input" || cfg.OutputDir != "./output" {
		t.Errorf("dirs = %q, %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.InvoicesDir != filepath.Join("./output", "invoices") {
		t.Errorf("InvoicesDir = %q", cfg.InvoicesDir)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if cfg.CSVSettings.Delimiter != "," || cfg.CSVSettings.Encoding != "UTF-8" {
		t.Errorf("CSVSettings = %+v", cfg.CSVSettings)
	}
	if cfg.Invoice.Format != "pdf" || cfg.Invoice.TaxRate != "0.10" || cfg.Invoice.DueDays() != 14 {
		t.Errorf("Invoice = %+v", cfg.Invoice)
	}
	if cfg.Invoice.Issuer.Name != "サンプル株式会社" {
		t.Errorf("Issuer.Name = %q", cfg.Invoice.Issuer.Name)
	}
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
input_dir: ./data/in
output_dir: ./data/out
max_concurrency: 2
export_xlsx: true
csv_settings:
  encoding: Shift_JIS
store_profiles:
  - name: store_b
    file_matching_patterns: ["store_b_*.csv"]
    csv_settings:
      delimiter: "\t"
invoice:
  format: xlsx
  tax_rate: "0.08"
  rounding: half_even
  payment_due_days: 0
  issuer:
    name: Example KK
`)

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InvoicesDir != filepath.Join("./data/out", "invoices") {
		t.Errorf("InvoicesDir = %q", cfg.InvoicesDir)
	}
	if cfg.MaxConcurrency != 2 || !cfg.ExportXLSX {
		t.Errorf("MaxConcurrency = %d, ExportXLSX = %v", cfg.MaxConcurrency, cfg.ExportXLSX)
	}
	if cfg.Invoice.Format != "xlsx" || cfg.Invoice.Rounding != "half_even" {
		t.Errorf("Invoice = %+v", cfg.Invoice)
	}
	if cfg.Invoice.DueDays() != 0 {
		t.Errorf("DueDays() = %d, want 0", cfg.Invoice.DueDays())
	}
	if cfg.Invoice.Issuer.Name != "Example KK" || cfg.Invoice.Issuer.Address != "" {
		t.Errorf("Issuer = %+v", cfg.Invoice.Issuer)
	}
	if cfg.Invoice.Bank.Name != "サンプル銀行" {
		t.Errorf("Bank = %+v", cfg.Invoice.Bank)
	}

	profile := cfg.CSVSettingsFor("/in/store_b_2026_01.csv")
	if profile.Delimiter != "\t" || profile.Encoding != "Shift_JIS" {
		t.Errorf("store_b settings = %+v", profile)
	}
	global := cfg.CSVSettingsFor("store_a_2026_01.csv")
	if global.Delimiter != "," || global.Encoding != "Shift_JIS" {
		t.Errorf("store_a settings = %+v", global)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "input_dir: ./from_file\n")

	t.Setenv("INVOICER_INPUT_DIR", "/env/in")
	t.Setenv("INVOICER_OUTPUT_DIR", "/env/out")
	t.Setenv("INVOICER_TAX_RATE", "0.08")
	t.Setenv("INVOICER_INVOICE_FORMAT", "xlsx")
	t.Setenv("INVOICER_MAX_CONCURRENCY", "8")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InputDir != "/env/in" {
		t.Errorf("InputDir = %q", cfg.InputDir)
	}
	if cfg.InvoicesDir != filepath.Join("/env/out", "invoices") {
		t.Errorf("InvoicesDir = %q", cfg.InvoicesDir)
	}
	if cfg.Invoice.TaxRate != "0.08" || cfg.Invoice.Format != "xlsx" {
		t.Errorf("Invoice = %+v", cfg.Invoice)
	}
	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d", cfg.MaxConcurrency)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "log level", content: "log_level: loud\n", want: "log_level"},
		{name: "log format", content: "log_format: xml\n", want: "log_format"},
		{name: "concurrency", content: "max_concurrency: -1\n", want: "max_concurrency"},
		{name: "format", content: "invoice:\n  format: docx\n", want: "invoice.format"},
		{name: "rounding", content: "invoice:\n  rounding: up\n", want: "invoice.rounding"},
		{name: "tax rate text", content: "invoice:\n  tax_rate: ten\n", want: "invoice.tax_rate"},
		{name: "tax rate range", content: "invoice:\n  tax_rate: \"1.5\"\n", want: "invoice.tax_rate"},
		{name: "due days", content: "invoice:\n  payment_due_days: -3\n", want: "payment_due_days"},
		{name: "profile pattern", content: "store_profiles:\n  - name: x\n    file_matching_patterns: [\"[\"]\n", want: "store_profiles[0]"},
		{name: "profile without pattern", content: "store_profiles:\n  - name: x\n", want: "store_profiles[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), true)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Load() error = %v, want %v", err, ErrInvalidConfig)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "input_dir: [unclosed\n"), true); err == nil {
		t.Fatal("expected parse error")
	}
}
