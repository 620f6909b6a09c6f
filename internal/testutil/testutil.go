// Package testutil provides test helpers and fixtures for diskscope tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestFixture holds the root of an isolated scan tree.
type TestFixture struct {
	T       *testing.T
	RootDir string // auto-cleaned temp directory
}

// NewFixture creates a fixture rooted in a fresh temp directory.
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()
	return &TestFixture{T: t, RootDir: t.TempDir()}
}

// Path joins relPath onto the fixture root.
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.RootDir, relPath)
}

// CreateDir creates a directory (and parents) under the root.
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()
	fullPath := f.Path(relPath)
	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateFile creates a file with the given content under the root.
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()
	fullPath := f.Path(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		f.T.Fatalf("failed to create directory for %s: %v", fullPath, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateFileOfSize creates a sparse file of exactly size bytes, so tests can
// use large logical sizes without paying for the disk blocks.
func (f *TestFixture) CreateFileOfSize(relPath string, size int64) string {
	f.T.Helper()
	fullPath := f.Path(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		f.T.Fatalf("failed to create directory for %s: %v", fullPath, err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}
	if err := file.Truncate(size); err != nil {
		file.Close()
		f.T.Fatalf("failed to size file %s: %v", fullPath, err)
	}
	if err := file.Close(); err != nil {
		f.T.Fatalf("failed to close file %s: %v", fullPath, err)
	}
	return fullPath
}

// TreeSize walks relPath and returns the total size of all regular files,
// an independent check for scanner totals.
func (f *TestFixture) TreeSize(relPath string) int64 {
	f.T.Helper()
	var total int64
	err := filepath.WalkDir(f.Path(relPath), func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		f.T.Fatalf("failed to walk %s: %v", relPath, err)
	}
	return total
}

// Exists reports whether relPath still exists under the root.
func (f *TestFixture) Exists(relPath string) bool {
	_, err := os.Stat(f.Path(relPath))
	return err == nil
}
