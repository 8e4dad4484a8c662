package reporting

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrReportNotFound is returned by every backend when no report is
	// stored under the requested key.
	ErrReportNotFound = errors.New("report not found")
	// ErrInvalidReportKey is returned for session or report ids that cannot
	// form a single path segment.
	ErrInvalidReportKey = errors.New("invalid report key")
)

// StorageClient abstracts blob storage for archived session reports.
type StorageClient interface {
	PutReport(ctx context.Context, sessionID, reportID string, data []byte) error
	GetReport(ctx context.Context, sessionID, reportID string) ([]byte, error)
}

// reportKey is the object key shared by every backend.
func reportKey(sessionID, reportID string) (string, error) {
	for _, seg := range []string{sessionID, reportID} {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, "/\\\x00") {
			return "", fmt.Errorf("%w: %q", ErrInvalidReportKey, seg)
		}
	}
	return sessionID + "/reports/" + reportID + ".json", nil
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and the CLI.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

// path maps a report key under BaseDir. Keys that would resolve outside
// BaseDir are rejected.
func (s *LocalStorage) path(sessionID, reportID string) (string, error) {
	key, err := reportKey(sessionID, reportID)
	if err != nil {
		return "", err
	}
	base := filepath.Clean(s.BaseDir)
	path := filepath.Join(base, filepath.FromSlash(key))
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the archive root", ErrInvalidReportKey, key)
	}
	return path, nil
}

// PutReport stores a report blob.
func (s *LocalStorage) PutReport(ctx context.Context, sessionID, reportID string, data []byte) error {
	path, err := s.path(sessionID, reportID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GetReport retrieves a report blob.
func (s *LocalStorage) GetReport(ctx context.Context, sessionID, reportID string) ([]byte, error) {
	path, err := s.path(sessionID, reportID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", sessionID, reportID, ErrReportNotFound)
	}
	return data, err
}

// StorageOptions selects and configures a backend.
type StorageOptions struct {
	Backend   string // local, s3 or gcs
	LocalPath string
	S3        S3Config
	Bucket    string // gcs
}

// NewStorage builds the StorageClient selected by opts.Backend.
func NewStorage(ctx context.Context, opts StorageOptions) (StorageClient, error) {
	switch opts.Backend {
	case "", "local":
		if opts.LocalPath == "" {
			return nil, fmt.Errorf("local storage requires a path")
		}
		return NewLocalStorage(opts.LocalPath), nil
	case "s3":
		if opts.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket")
		}
		return NewS3Storage(ctx, opts.S3)
	case "gcs":
		if opts.Bucket == "" {
			return nil, fmt.Errorf("gcs storage requires a bucket")
		}
		return NewGCSStorage(ctx, opts.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
