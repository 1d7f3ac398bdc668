// =============================================================================
// CSV Invoice Tool - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for a processing run:
//   - Directory management
//   - Input archival (moving processed sales CSVs)
//   - Processing summary log generation
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after a successful run
//   - Files that failed to read stay in input_dir for the next attempt
//   - Summary logs are created in the output directory
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a run.
type FileManager struct {
	// InputDir is the directory where sales CSVs are placed.
	InputDir string

	// OutputDir receives the report tables and summary logs.
	OutputDir string

	// InvoicesDir receives the rendered invoices.
	InvoicesDir string

	// InputArchiveDir is the directory for archived input files.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2026/02/01/store_a_2026_01.csv
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether inputs are archived at all.
	ArchiveOnSuccess bool

	// now is replaceable in tests.
	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, invoicesDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:            inputDir,
		OutputDir:           outputDir,
		InvoicesDir:         invoicesDir,
		InputArchiveDir:     inputArchiveDir,
		UseTimestampSubdirs: false,
		ArchiveOnSuccess:    true,
		now:                 time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output directories if they don't exist.
// The input directory is left alone; a missing one means no input files.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{
		fm.OutputDir,
		fm.InvoicesDir,
	}
	if fm.ArchiveOnSuccess {
		dirs = append(dirs, fm.InputArchiveDir)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file (filePath itself when archiving is off).
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device: copy, then delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.clock()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID           string
	Month           string
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	RowsAccepted    int
	RowsRejected    int
	GrandTotal      int64
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
	Outputs         []string
	Invoices        []string
}

// ProcessedFileInfo contains information about a successfully read file.
type ProcessedFileInfo struct {
	InputFile   string
	Store       string
	ArchivePath string
	Rows        int
	Accepted    int
	Rejected    int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a file that could not be read.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

const rule = "================================================================================\n"

// SummaryLogName returns the summary file name for a run, e.g.
// processing_summary_2026-01_20260201_093000.txt.
func SummaryLogName(summary ProcessingSummary) string {
	return fmt.Sprintf("processing_summary_%s_%s.txt",
		summary.Month, summary.EndTime.Format("20060102_150405"))
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	summaryPath := filepath.Join(outputDir, SummaryLogName(summary))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "CSV Invoice Tool - Processing Summary\n"+
		rule+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Month:          %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:    %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Rows Accepted:  %d\n"+
		"  Rows Rejected:  %d\n"+
		"  Grand Total:    %d\n\n",
		summary.RunID,
		summary.Month,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.RowsAccepted,
		summary.RowsRejected,
		summary.GrandTotal)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Store:        %s\n", pf.Store)
			if pf.ArchivePath != "" {
				fmt.Fprintf(writer, "  Archived To:  %s\n", pf.ArchivePath)
			}
			fmt.Fprintf(writer, "  Rows:         %d (accepted %d, rejected %d)\n", pf.Rows, pf.Accepted, pf.Rejected)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writeList(writer, "Outputs", summary.Outputs)
	writeList(writer, "Invoices", summary.Invoices)

	writer.WriteString(rule + "End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

func writeList(w *bufio.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  %s\n", it)
	}
	w.WriteString("\n")
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
