package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilsonani/diskscope/internal/batch"
	"github.com/fenilsonani/diskscope/internal/perf"
	"github.com/fenilsonani/diskscope/internal/queue"
)

// writeSparse creates a sparse file of the given logical size.
func writeSparse(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// =============================================================================
// Scanner Benchmarks
// =============================================================================

func benchScanner(b *testing.B, opts Options) *Scanner {
	b.Helper()
	updater := batch.New(2 * time.Millisecond)
	b.Cleanup(updater.Close)
	monitor := perf.NewMonitor(
		perf.WithSlowThreshold(time.Hour),
		perf.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return New(opts, NewSizeCache(0, 0), updater, queue.New(), monitor)
}

func benchTree(b *testing.B, files int) string {
	b.Helper()
	root := b.TempDir()
	for i := 0; i < files; i++ {
		dir := root
		if i%4 == 0 {
			dir = root + "/nested"
		}
		if err := writeSparse(fmt.Sprintf("%s/f%04d.bin", dir, i), 4096); err != nil {
			b.Fatal(err)
		}
	}
	return root
}

func BenchmarkScan(b *testing.B) {
	root := benchTree(b, 500)
	s := benchScanner(b, Options{Roots: []string{root}, Threshold: 1})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Scan(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDirSizeCold(b *testing.B) {
	root := benchTree(b, 500)
	s := benchScanner(b, Options{Roots: []string{root}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.sizes.Clear()
		if _, _, err := s.DirSize(context.Background(), root); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDirSizeWarm(b *testing.B) {
	root := benchTree(b, 500)
	s := benchScanner(b, Options{Roots: []string{root}})
	if _, _, err := s.DirSize(context.Background(), root); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := s.DirSize(context.Background(), root); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIsPackage(b *testing.B) {
	s := benchScanner(b, Options{
		Roots:           []string{"/tmp"},
		PackageNames:    []string{"node_modules"},
		PackageSuffixes: []string{".app", ".framework", ".bundle"},
	})
	names := []string{"Documents", "MyApp.app", "node_modules", "src", "Core.framework"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, name := range names {
			s.isPackage(name)
		}
	}
}
