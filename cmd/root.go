// =============================================================================
// CSV Invoice Tool - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoicer)
//   ├── processCmd (invoicer process)
//   ├── invoiceCmd (invoicer invoice)
//   ├── runsCmd    (invoicer runs)
//   └── versionCmd (invoicer version)
//
// CONFIGURATION:
//   The root command owns the global flags (--config, --verbose). Commands
//   that need configuration call loadRuntime, which loads config.yaml and
//   sets up logging.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "CSV Invoice Tool - Monthly store sales to invoices",
	Long: `CSV Invoice Tool reads the monthly sales CSV exports of each store,
normalizes the differing column layouts, aggregates the totals per store and
per item, and issues one invoice per store.

Key Features:
  - Column synonyms (date/day/日付, product/item_name/商品名, ...)
  - Row-level validation with a complete errors.csv
  - UTF-8 (with or without BOM), Shift_JIS and EUC-JP input
  - Concurrent per-file processing
  - PDF or XLSX invoices with tax computed per store

Example Usage:
  invoicer process --month 2026-01                 # Full run
  invoicer process --month 2026-01 --dry-run       # Validate only
  invoicer invoice --month 2026-01                 # Re-issue invoices from summary_by_store.csv
  invoicer runs --month 2026-01                    # List recorded runs (needs sqlite_path)
  invoicer process --month 2026-01 --config my.yaml`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. Ctrl-C cancels the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadRuntime loads the configuration and installs the logger.
// An explicit --config must exist; the default path may be absent.
func loadRuntime(cmd *cobra.Command) (*config.MainConfig, *slog.Logger, error) {
	required := cmd.Flags().Changed("config")

	cfg, err := config.Load(cfgFile, required)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load main config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger := logging.Setup(level, cfg.LogFormat)
	logger.Debug("config loaded", "path", cfgFile, "input_dir", cfg.InputDir, "output_dir", cfg.OutputDir)

	return cfg, logger, nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultPath,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
