// =============================================================================
// CSV Invoice Tool - Configuration Module
// =============================================================================
//
// This module loads the application configuration.
//
// SOURCES (later wins):
//   1. Built-in defaults
//   2. config.yaml (path from --config)
//   3. .env in the working directory (loaded into the environment)
//   4. INVOICER_* environment variables
//
// STORE PROFILES:
//   Stores whose exports differ from the global csv_settings (for example a
//   register that writes Shift_JIS) get a store profile. The first profile
//   whose file pattern matches the input file name supplies its CSV settings.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "config.yaml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for <store>_<YYYY>_<MM>.csv files.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives normalized.csv, errors.csv and the summaries.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InvoicesDir receives the rendered invoices.
	// Default: "<output_dir>/invoices"
	InvoicesDir string `yaml:"invoices_dir"`

	// InputArchiveDir receives processed inputs when ArchiveInputs is set.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// ArchiveInputs moves each cleanly processed input file into
	// InputArchiveDir after a successful run.
	// Default: false
	ArchiveInputs bool `yaml:"archive_inputs"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the slog handler: "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of input files normalized at once.
	// Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// CSVSettings apply to every input file without a matching store profile.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// StoreProfiles override CSVSettings for specific files.
	StoreProfiles []StoreProfile `yaml:"store_profiles"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// ExportXLSX additionally writes report.xlsx with one sheet per table.
	// Default: false
	ExportXLSX bool `yaml:"export_xlsx"`

	// SQLitePath, when set, records every run in a SQLite database.
	// Default: "" (disabled)
	SQLitePath string `yaml:"sqlite_path"`

	// Invoice configures invoice building and rendering.
	Invoice InvoiceConfig `yaml:"invoice"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter separates fields.
	// Common values: "," (comma), "|" (pipe), "\t" or "tab"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Valid values: "UTF-8", "Shift_JIS", "EUC-JP"
	// A UTF-8 byte order mark is honored regardless of this setting.
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// StoreProfile assigns CSV settings to the files of one store.
type StoreProfile struct {
	// Name is used in logs only.
	Name string `yaml:"name"`

	// FileMatchingPatterns are glob patterns matched against the file's
	// base name, e.g. "store_b_*.csv".
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// CSVSettings replaces the global settings for matching files. Empty
	// fields inherit the global value.
	CSVSettings CSVSettings `yaml:"csv_settings"`
}

// =============================================================================
// INVOICE SETTINGS STRUCTURE
// =============================================================================

// InvoiceConfig holds everything printed on, or used to compute, an invoice.
type InvoiceConfig struct {
	// Format is the rendered document type: "pdf" or "xlsx".
	// Default: "pdf"
	Format string `yaml:"format"`

	// TaxRate is the consumption tax rate as a decimal string.
	// Default: "0.10"
	TaxRate string `yaml:"tax_rate"`

	// Rounding is the tax rounding mode: "half_away_from_zero" or
	// "half_even".
	// Default: "half_away_from_zero"
	Rounding string `yaml:"rounding"`

	// PaymentDueDays is added to the issue date to get the due date.
	// Default: 14
	PaymentDueDays *int `yaml:"payment_due_days"`

	// FontPath is a TrueType font with Japanese glyphs, required for PDF.
	// Default: "./assets/fonts/NotoSansJP-Regular.ttf"
	FontPath string `yaml:"font_path"`

	// LogoPath is an optional PNG/JPEG drawn above the issuer block.
	// Missing files are skipped.
	// Default: "./assets/logo.png"
	LogoPath string `yaml:"logo_path"`

	// LogoWidth is the logo width in points.
	// Default: 70
	LogoWidth float64 `yaml:"logo_width"`

	Issuer IssuerConfig `yaml:"issuer"`
	Bank   BankConfig   `yaml:"bank"`

	// Notes is printed below the payment block.
	Notes string `yaml:"notes"`

	// Footer is printed at the bottom right.
	// Default: "Generated by invoicer"
	Footer string `yaml:"footer"`
}

// IssuerConfig identifies the invoicing company.
type IssuerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Tel     string `yaml:"tel"`
	Email   string `yaml:"email"`
}

// BankConfig is the transfer destination printed in the payment block.
type BankConfig struct {
	Name        string `yaml:"name"`
	Branch      string `yaml:"branch"`
	Account     string `yaml:"account"`
	AccountName string `yaml:"account_name"`
}

// DueDays returns PaymentDueDays or its default.
func (c InvoiceConfig) DueDays() int {
	if c.PaymentDueDays == nil {
		return defaultPaymentDueDays
	}
	return *c.PaymentDueDays
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load loads the configuration.
//
// PARAMETERS:
//   - configPath: The path to the YAML file.
//   - required: When false, a missing file yields the defaults. Set it when
//     the user passed --config explicitly.
//
// RETURNS:
//   - A pointer to the MainConfig struct, defaults applied.
//   - An error if the file cannot be read or parsed, or a value is invalid.
func Load(configPath string, required bool) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// A missing .env is normal. Existing variables are not overwritten.
	_ = godotenv.Load()

	if err := applyEnvOverrides(&config); err != nil {
		return nil, err
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnvOverrides copies INVOICER_* variables over the file values.
func applyEnvOverrides(config *MainConfig) error {
	overrides := []struct {
		key    string
		target *string
	}{
		{"INVOICER_INPUT_DIR", &config.InputDir},
		{"INVOICER_OUTPUT_DIR", &config.OutputDir},
		{"INVOICER_INVOICES_DIR", &config.InvoicesDir},
		{"INVOICER_LOG_LEVEL", &config.LogLevel},
		{"INVOICER_LOG_FORMAT", &config.LogFormat},
		{"INVOICER_SQLITE_PATH", &config.SQLitePath},
		{"INVOICER_TAX_RATE", &config.Invoice.TaxRate},
		{"INVOICER_FONT_PATH", &config.Invoice.FontPath},
		{"INVOICER_INVOICE_FORMAT", &config.Invoice.Format},
	}

	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv("INVOICER_MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: INVOICER_MAX_CONCURRENCY: %v", ErrInvalidConfig, err)
		}
		config.MaxConcurrency = n
	}

	return nil
}

const (
	defaultPaymentDueDays = 14
	defaultTaxRate        = "0.10"
)

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InvoicesDir == "" {
		config.InvoicesDir = filepath.Join(config.OutputDir, "invoices")
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}

	applyCSVDefaults(&config.CSVSettings)
	for i := range config.StoreProfiles {
		inheritCSVSettings(&config.StoreProfiles[i].CSVSettings, config.CSVSettings)
	}

	applyInvoiceDefaults(&config.Invoice)
}

func applyCSVDefaults(settings *CSVSettings) {
	if settings.Delimiter == "" {
		settings.Delimiter = ","
	}
	if settings.Encoding == "" {
		settings.Encoding = "UTF-8"
	}
}

func inheritCSVSettings(settings *CSVSettings, global CSVSettings) {
	if settings.Delimiter == "" {
		settings.Delimiter = global.Delimiter
	}
	if settings.Encoding == "" {
		settings.Encoding = global.Encoding
	}
}

// applyInvoiceDefaults fills the invoice block. The issuer and bank defaults
// are placeholders meant to be replaced in config.yaml.
func applyInvoiceDefaults(inv *InvoiceConfig) {
	if inv.Format == "" {
		inv.Format = "pdf"
	}
	if inv.TaxRate == "" {
		inv.TaxRate = defaultTaxRate
	}
	if inv.Rounding == "" {
		inv.Rounding = "half_away_from_zero"
	}
	if inv.PaymentDueDays == nil {
		days := defaultPaymentDueDays
		inv.PaymentDueDays = &days
	}
	if inv.FontPath == "" {
		inv.FontPath = "./assets/fonts/NotoSansJP-Regular.ttf"
	}
	if inv.LogoPath == "" {
		inv.LogoPath = "./assets/logo.png"
	}
	if inv.LogoWidth == 0 {
		inv.LogoWidth = 70
	}
	if inv.Footer == "" {
		inv.Footer = "Generated by invoicer"
	}

	if inv.Issuer == (IssuerConfig{}) {
		inv.Issuer = IssuerConfig{
			Name:    "サンプル株式会社",
			Address: "〒100-0001 東京都千代田区サンプル1-2-3",
			Tel:     "03-0000-0000",
			Email:   "example@example.com",
		}
	}
	if inv.Bank == (BankConfig{}) {
		inv.Bank = BankConfig{
			Name:        "サンプル銀行",
			Branch:      "本店",
			Account:     "普通 1234567",
			AccountName: "サンプル（カ",
		}
	}
	if inv.Notes == "" {
		inv.Notes = "※振込手数料は貴社ご負担にてお願いいたします。"
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	var problems []string

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q must be debug, info, warn or error", config.LogLevel))
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q must be text or json", config.LogFormat))
	}

	if config.MaxConcurrency < 1 {
		problems = append(problems, fmt.Sprintf("max_concurrency must be at least 1, got %d", config.MaxConcurrency))
	}

	for i, p := range config.StoreProfiles {
		if len(p.FileMatchingPatterns) == 0 {
			problems = append(problems, fmt.Sprintf("store_profiles[%d] has no file_matching_patterns", i))
		}
		for _, pattern := range p.FileMatchingPatterns {
			if _, err := filepath.Match(pattern, ""); err != nil {
				problems = append(problems, fmt.Sprintf("store_profiles[%d] pattern %q: %v", i, pattern, err))
			}
		}
	}

	inv := config.Invoice
	switch inv.Format {
	case "pdf", "xlsx":
	default:
		problems = append(problems, fmt.Sprintf("invoice.format %q must be pdf or xlsx", inv.Format))
	}

	switch inv.Rounding {
	case "half_away_from_zero", "half_even":
	default:
		problems = append(problems, fmt.Sprintf("invoice.rounding %q must be half_away_from_zero or half_even", inv.Rounding))
	}

	rate, err := decimal.NewFromString(inv.TaxRate)
	switch {
	case err != nil:
		problems = append(problems, fmt.Sprintf("invoice.tax_rate %q is not a number", inv.TaxRate))
	case rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)):
		problems = append(problems, fmt.Sprintf("invoice.tax_rate %s must be between 0 and 1", inv.TaxRate))
	}

	if inv.DueDays() < 0 {
		problems = append(problems, fmt.Sprintf("invoice.payment_due_days must not be negative, got %d", inv.DueDays()))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// CSVSettingsFor returns the CSV settings for an input file: those of the
// first store profile matching its base name, else the global settings.
func (c *MainConfig) CSVSettingsFor(filePath string) CSVSettings {
	name := filepath.Base(filePath)
	for _, p := range c.StoreProfiles {
		for _, pattern := range p.FileMatchingPatterns {
			if ok, _ := filepath.Match(pattern, name); ok {
				return p.CSVSettings
			}
		}
	}
	return c.CSVSettings
}
