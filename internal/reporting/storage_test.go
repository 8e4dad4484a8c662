package reporting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoragePutGetReport(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"variant":"aba"}`)
	if err := s.PutReport(ctx, "sess1", "rep1", data); err != nil {
		t.Fatalf("PutReport: %v", err)
	}

	got, err := s.GetReport(ctx, "sess1", "rep1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetReport = %q, want %q", got, data)
	}

	// Verify file path layout
	expectedPath := filepath.Join(dir, "sess1", "reports", "rep1.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalStorageGetNotFound(t *testing.T) {
	s := NewLocalStorage(t.TempDir())

	_, err := s.GetReport(context.Background(), "sess1", "nonexistent")
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}

func TestLocalStorageStaysUnderBaseDir(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStorage(filepath.Join(root, "archive"))
	ctx := context.Background()

	outside := filepath.Join(root, "secret", "reports")
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outside, "x.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		sessionID, reportID string
	}{
		{"../secret", "x"},
		{"..", "x"},
		{"../../etc", "passwd"},
		{"sess1", "../../secret/reports/x"},
		{"a\\..\\..", "x"},
		{"", "x"},
		{"sess1", ""},
	}
	for _, tt := range tests {
		if _, err := s.GetReport(ctx, tt.sessionID, tt.reportID); !errors.Is(err, ErrInvalidReportKey) {
			t.Errorf("GetReport(%q, %q) = %v, want ErrInvalidReportKey", tt.sessionID, tt.reportID, err)
		}
		if err := s.PutReport(ctx, tt.sessionID, tt.reportID, []byte("{}")); !errors.Is(err, ErrInvalidReportKey) {
			t.Errorf("PutReport(%q, %q) = %v, want ErrInvalidReportKey", tt.sessionID, tt.reportID, err)
		}
	}
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	s, err := NewStorage(ctx, StorageOptions{Backend: "local", LocalPath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStorage(local): %v", err)
	}
	if _, ok := s.(*LocalStorage); !ok {
		t.Errorf("NewStorage(local) = %T, want *LocalStorage", s)
	}

	for _, opts := range []StorageOptions{
		{Backend: "local"},
		{Backend: "s3"},
		{Backend: "gcs"},
		{Backend: "ftp"},
	} {
		if _, err := NewStorage(ctx, opts); err == nil {
			t.Errorf("NewStorage(%+v) expected error", opts)
		}
	}
}
