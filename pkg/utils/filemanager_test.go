package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "output", "invoices"),
		filepath.Join(root, "input_archive"),
	)

	if err := fm.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() error = %v", err)
	}

	for _, dir := range []string{fm.OutputDir, fm.InvoicesDir, fm.InputArchiveDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created", dir)
		}
	}
	if FileExists(fm.InputDir) {
		t.Errorf("input dir should not be created")
	}
}

func TestArchiveInputFile(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "store_a_2026_01.csv")
	if err := os.WriteFile(input, []byte("date,item\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fm := NewFileManager(root, root, root, filepath.Join(root, "archive"))
	fm.UseTimestampSubdirs = true
	fm.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }

	got, err := fm.ArchiveInputFile(input)
	if err != nil {
		t.Fatalf("ArchiveInputFile() error = %v", err)
	}

	want := filepath.Join(root, "archive", "2026", "02", "01", "store_a_2026_01.csv")
	if got != want {
		t.Errorf("ArchiveInputFile() = %q, want %q", got, want)
	}
	if FileExists(input) {
		t.Error("original file still present")
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "date,item\n" {
		t.Errorf("archived content = %q, %v", data, err)
	}
}

func TestArchiveInputFile_Disabled(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "b_2026_01.csv")
	if err := os.WriteFile(input, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	fm := NewFileManager(root, root, root, filepath.Join(root, "archive"))
	fm.ArchiveOnSuccess = false

	got, err := fm.ArchiveInputFile(input)
	if err != nil || got != input {
		t.Errorf("ArchiveInputFile() = %q, %v", got, err)
	}
	if !FileExists(input) {
		t.Error("file moved while archiving is off")
	}
}

func TestWriteSummaryLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	start := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	summary := ProcessingSummary{
		RunID:           "run-1",
		Month:           "2026-01",
		StartTime:       start,
		EndTime:         start.Add(1500 * time.Millisecond),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		RowsAccepted:    2,
		RowsRejected:    1,
		GrandTotal:      350,
		ProcessedFiles: []ProcessedFileInfo{{
			InputFile: "A_2026_01.csv", Store: "A", Rows: 3, Accepted: 2, Rejected: 1,
		}},
		FailedFilesList: []FailedFileInfo{{InputFile: "B_2026_01.csv", ErrorMessage: "bad encoding"}},
		Invoices:        []string{"invoices/invoice_A_202601.pdf"},
	}

	path, err := WriteSummaryLog(summary, dir)
	if err != nil {
		t.Fatalf("WriteSummaryLog() error = %v", err)
	}
	if want := filepath.Join(dir, "processing_summary_2026-01_20260201_093001.txt"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"Run ID:         run-1",
		"Duration:       1.5s",
		"Grand Total:    350",
		"Rows:         3 (accepted 2, rejected 1)",
		"Error: bad encoding",
		"invoices/invoice_A_202601.pdf",
		"End of Summary",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	if strings.Contains(text, "Outputs:") {
		t.Error("empty outputs list should be omitted")
	}
}
