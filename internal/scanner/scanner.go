// Package scanner walks one or more root directories concurrently, finds
// files and opaque packages over a size threshold, and streams size-ranked
// snapshots to the presentation loop through the batch updater.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/diskscope/internal/batch"
	"github.com/fenilsonani/diskscope/internal/cache"
	"github.com/fenilsonani/diskscope/internal/config"
	"github.com/fenilsonani/diskscope/internal/perf"
	"github.com/fenilsonani/diskscope/internal/queue"
	"github.com/fenilsonani/diskscope/pkg/utils"
)

// snapshotKey is the debounce key for consolidated snapshot publishes.
const snapshotKey = "scanner.snapshot"

// Kind classifies a scan result.
type Kind string

const (
	KindFile    Kind = "file"
	KindPackage Kind = "package"
)

// Result is one size-qualifying item found during a scan. It is immutable
// after creation; copies move by value into the accumulator.
type Result struct {
	ID           string
	Path         string
	Size         int64
	Kind         Kind
	LastAccessed time.Time
}

// Snapshot is a transient, consolidated view of scan progress. It is rebuilt
// on every publish and never persisted.
type Snapshot struct {
	Results        []Result // sorted descending by size
	TotalSize      int64
	ProcessedCount int
	Elapsed        time.Duration
}

// Options configures a Scanner.
type Options struct {
	Roots           []string
	Threshold       int64
	ExcludeNames    []string
	PackageNames    []string
	PackageSuffixes []string

	// ChunkFloor/ChunkDivisor shape the concurrent summation chunks:
	// chunk size = max(ChunkFloor, fileCount/ChunkDivisor).
	ChunkFloor   int
	ChunkDivisor int

	// SnapshotInterval and SnapshotBatch bound how stale a published
	// snapshot may get: a publish is forced when either limit is hit.
	SnapshotInterval time.Duration
	SnapshotBatch    int

	// Protected, when set, vetoes deletion of a path.
	Protected func(string) bool
}

// dirStat is the cached outcome of sizing one directory subtree.
type dirStat struct {
	Size  int64
	Files int
}

// Scanner fans out one subtask per top-level entry, merges their outputs
// into one accumulator, and publishes ranked snapshots.
type Scanner struct {
	opts    Options
	exclude map[string]struct{}
	pkgs    map[string]struct{}

	sizes   *cache.Cache[string, dirStat]
	updater *batch.Updater
	serial  *queue.Queue
	monitor *perf.Monitor

	onSnapshot func(Snapshot)

	mu          sync.Mutex
	results     []Result
	byID        map[string]int // id -> index into results
	totalSize   int64
	sinceFlush  int
	lastPublish time.Time
	selected    map[string]struct{}

	processed atomic.Int64
	stopped   atomic.Bool
	startTime time.Time
}

// New creates a scanner. The cache avoids re-sizing unchanged directories,
// the updater carries snapshots to the presentation loop, and the serial
// queue is the one lane deletions run on.
func New(opts Options, sizes *cache.Cache[string, dirStat], updater *batch.Updater, serial *queue.Queue, monitor *perf.Monitor) *Scanner {
	if opts.Threshold <= 0 {
		opts.Threshold = config.DefaultThresholdBytes
	}
	if opts.ChunkFloor <= 0 {
		opts.ChunkFloor = config.DefaultChunkFloor
	}
	if opts.ChunkDivisor <= 0 {
		opts.ChunkDivisor = config.DefaultChunkDivisor
	}
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = config.DefaultSnapshotInterval
	}
	if opts.SnapshotBatch <= 0 {
		opts.SnapshotBatch = config.DefaultSnapshotBatch
	}

	s := &Scanner{
		opts:     opts,
		exclude:  make(map[string]struct{}, len(opts.ExcludeNames)),
		pkgs:     make(map[string]struct{}, len(opts.PackageNames)),
		sizes:    sizes,
		updater:  updater,
		serial:   serial,
		monitor:  monitor,
		byID:     make(map[string]int),
		selected: make(map[string]struct{}),
	}
	for _, name := range opts.ExcludeNames {
		s.exclude[name] = struct{}{}
	}
	for _, name := range opts.PackageNames {
		s.pkgs[name] = struct{}{}
	}
	return s
}

// NewSizeCache builds the directory-size cache the scanner shares with the
// persistence layer.
func NewSizeCache(maxBytes int64, ttl time.Duration) *cache.Cache[string, dirStat] {
	return cache.New[string, dirStat](maxBytes, ttl)
}

// SetSnapshotFunc installs the consumer for published snapshots. The
// function always runs on the updater's presentation loop.
func (s *Scanner) SetSnapshotFunc(fn func(Snapshot)) {
	s.onSnapshot = fn
}

// Stop requests cooperative cancellation. No new directories are visited
// once observed; in-flight chunk computations finish, and the final snapshot
// reflects whatever accumulated.
func (s *Scanner) Stop() {
	s.stopped.Store(true)
}

// Scan traverses all roots and returns the final consolidated snapshot.
// Per-entry enumeration errors are skipped silently, counted as visited but
// not as results.
func (s *Scanner) Scan(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.results = nil
	s.byID = make(map[string]int)
	s.totalSize = 0
	s.sinceFlush = 0
	s.lastPublish = time.Now()
	s.mu.Unlock()
	s.processed.Store(0)
	s.stopped.Store(false)
	s.startTime = time.Now()

	token := s.monitor.Begin("scanner.scan")
	defer token.End()

	g, gctx := errgroup.WithContext(ctx)
	for _, root := range s.opts.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			// Unreadable root: visited, no results from it.
			s.processed.Add(1)
			continue
		}
		for _, entry := range entries {
			if s.excluded(entry.Name()) {
				continue
			}
			path := filepath.Join(root, entry.Name())
			entry := entry
			g.Go(func() error {
				s.scanTopLevel(gctx, path, entry)
				return nil
			})
		}
	}
	g.Wait()

	// One final snapshot after all subtasks join, published synchronously.
	var final Snapshot
	s.updater.ExecuteImmediately(snapshotKey, func() {
		final = s.snapshot()
		if s.onSnapshot != nil {
			s.onSnapshot(final)
		}
	})
	return final, ctx.Err()
}

// scanTopLevel handles one immediate child of a root: loose file, opaque
// package, or recursable directory.
func (s *Scanner) scanTopLevel(ctx context.Context, path string, entry os.DirEntry) {
	if s.shouldStop(ctx) {
		return
	}
	if !entry.IsDir() {
		s.processed.Add(1)
		info, err := entry.Info()
		if err != nil {
			return
		}
		if info.Size() >= s.opts.Threshold {
			s.merge(newResult(path, info.Size(), KindFile, info.ModTime()))
		}
		return
	}
	if s.isPackage(entry.Name()) {
		s.scanPackage(ctx, path)
		return
	}
	s.walkSubtree(ctx, path)
}

// walkSubtree depth-first walks one subtree, collecting size-qualifying
// files and treating nested packages as leaf units.
func (s *Scanner) walkSubtree(ctx context.Context, dir string) {
	if s.shouldStop(ctx) {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.processed.Add(1)
		return
	}
	for _, entry := range entries {
		if s.shouldStop(ctx) {
			return
		}
		name := entry.Name()
		if s.excluded(name) {
			// Skipping an excluded directory here also skips its subtree.
			continue
		}
		path := filepath.Join(dir, name)
		if entry.IsDir() {
			if s.isPackage(name) {
				s.scanPackage(ctx, path)
			} else {
				s.walkSubtree(ctx, path)
			}
			continue
		}
		s.processed.Add(1)
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() >= s.opts.Threshold {
			s.merge(newResult(path, info.Size(), KindFile, info.ModTime()))
		}
	}
}

// scanPackage sizes an opaque package directory as one leaf unit. A package
// that cannot be statted or sized still counts as visited.
func (s *Scanner) scanPackage(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		s.processed.Add(1)
		return
	}
	size, _, err := s.DirSize(ctx, path)
	if err != nil {
		s.processed.Add(1)
		return
	}
	if size >= s.opts.Threshold {
		s.merge(newResult(path, size, KindPackage, info.ModTime()))
	}
}

// DirSize computes the aggregate size and file count of the subtree at dir.
// Results are cached keyed by path and directory mtime, so unchanged
// directories cost one Stat on a re-scan. The file list is partitioned into
// chunks of max(ChunkFloor, n/ChunkDivisor) which are summed concurrently
// and reduced by addition.
func (s *Scanner) DirSize(ctx context.Context, dir string) (int64, int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, 0, err
	}
	key := sizeCacheKey(dir, info.ModTime())
	if st, ok := s.sizes.Get(key); ok {
		return st.Size, st.Files, nil
	}

	token := s.monitor.Begin("scanner.dirSize")
	defer token.End()

	files := s.collectFiles(ctx, dir)
	total := s.sumConcurrently(ctx, files)

	// An interrupted walk yields a truncated total; caching it would make
	// every later scan of the unchanged directory report the wrong size.
	if !s.shouldStop(ctx) {
		s.sizes.Set(key, dirStat{Size: total, Files: len(files)})
	}
	return total, len(files), nil
}

// collectFiles lists every file path under dir, honoring exclusions. Each
// visited entry counts toward the processed total; unreadable entries are
// skipped silently.
func (s *Scanner) collectFiles(ctx context.Context, dir string) []string {
	var files []string
	var walk func(string)
	walk = func(d string) {
		if s.shouldStop(ctx) {
			return
		}
		entries, err := os.ReadDir(d)
		if err != nil {
			s.processed.Add(1)
			return
		}
		for _, entry := range entries {
			if s.excluded(entry.Name()) {
				continue
			}
			path := filepath.Join(d, entry.Name())
			if entry.IsDir() {
				walk(path)
				continue
			}
			s.processed.Add(1)
			files = append(files, path)
		}
	}
	walk(dir)
	return files
}

// sumConcurrently stats and sums the files in concurrent chunks. Once
// cancellation is observed no new chunk starts, but a chunk already running
// finishes; the returned total reflects whatever was summed.
func (s *Scanner) sumConcurrently(ctx context.Context, files []string) int64 {
	if len(files) == 0 {
		return 0
	}
	chunkSize := len(files) / s.opts.ChunkDivisor
	if chunkSize < s.opts.ChunkFloor {
		chunkSize = s.opts.ChunkFloor
	}

	var g errgroup.Group
	numChunks := (len(files) + chunkSize - 1) / chunkSize
	partials := make([]int64, numChunks)
	for i := 0; i < numChunks; i++ {
		if s.shouldStop(ctx) {
			break
		}
		lo := i * chunkSize
		hi := lo + chunkSize
		if hi > len(files) {
			hi = len(files)
		}
		i, chunk := i, files[lo:hi]
		g.Go(func() error {
			var sum int64
			for _, path := range chunk {
				info, err := os.Lstat(path)
				if err != nil {
					continue
				}
				sum += info.Size()
			}
			partials[i] = sum
			return nil
		})
	}
	g.Wait()
	return utils.SumSizes(partials)
}

// merge folds one result into the accumulator and decides how to publish:
// immediately when the batch or interval limit is hit, otherwise debounced.
func (s *Scanner) merge(r Result) {
	s.mu.Lock()
	if idx, ok := s.byID[r.ID]; ok {
		// Same path found again (re-scan of a cached package); replace.
		s.totalSize += r.Size - s.results[idx].Size
		s.results[idx] = r
	} else {
		s.byID[r.ID] = len(s.results)
		s.results = append(s.results, r)
		s.totalSize += r.Size
	}
	s.sinceFlush++
	force := s.sinceFlush >= s.opts.SnapshotBatch ||
		time.Since(s.lastPublish) >= s.opts.SnapshotInterval
	if force {
		s.sinceFlush = 0
		s.lastPublish = time.Now()
	}
	s.mu.Unlock()

	if s.onSnapshot == nil {
		return
	}
	if force {
		s.updater.ExecuteImmediately(snapshotKey, s.publish)
	} else {
		s.updater.Debounce(snapshotKey, s.publish)
	}
}

// publish runs on the presentation loop.
func (s *Scanner) publish() {
	if s.onSnapshot != nil {
		s.onSnapshot(s.snapshot())
	}
}

// snapshot rebuilds the consolidated, size-descending view.
func (s *Scanner) snapshot() Snapshot {
	s.mu.Lock()
	results := make([]Result, len(s.results))
	copy(results, s.results)
	total := s.totalSize
	s.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Size > results[j].Size
	})
	return Snapshot{
		Results:        results,
		TotalSize:      total,
		ProcessedCount: int(s.processed.Load()),
		Elapsed:        time.Since(s.startTime),
	}
}

// Results returns the current accumulator contents, ranked by size.
func (s *Scanner) Results() []Result {
	return s.snapshot().Results
}

// TotalSize returns the current accumulated size.
func (s *Scanner) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}

// Select marks result IDs for deletion.
func (s *Scanner) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			s.selected[id] = struct{}{}
		}
	}
}

// Selected returns the currently selected result IDs.
func (s *Scanner) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Scanner) shouldStop(ctx context.Context) bool {
	return s.stopped.Load() || ctx.Err() != nil
}

func (s *Scanner) excluded(name string) bool {
	_, ok := s.exclude[name]
	return ok
}

func (s *Scanner) isPackage(name string) bool {
	if _, ok := s.pkgs[name]; ok {
		return true
	}
	for _, suffix := range s.opts.PackageSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func newResult(path string, size int64, kind Kind, lastAccessed time.Time) Result {
	return Result{
		ID:           utils.ShortHash(path),
		Path:         path,
		Size:         size,
		Kind:         kind,
		LastAccessed: lastAccessed,
	}
}

func sizeCacheKey(dir string, modTime time.Time) string {
	return dir + "|" + modTime.UTC().Format(time.RFC3339Nano)
}
