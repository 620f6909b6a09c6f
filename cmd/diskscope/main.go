package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/diskscope/internal/batch"
	"github.com/fenilsonani/diskscope/internal/cache"
	"github.com/fenilsonani/diskscope/internal/config"
	"github.com/fenilsonani/diskscope/internal/perf"
	"github.com/fenilsonani/diskscope/internal/platform"
	"github.com/fenilsonani/diskscope/internal/queue"
	"github.com/fenilsonani/diskscope/internal/scanner"
	"github.com/fenilsonani/diskscope/internal/ui"
	"github.com/fenilsonani/diskscope/pkg/utils"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath  string
	verbose     bool
	dryRun      bool
	interactive bool
	roots       []string
	threshold   string
	excludes    []string
	topN        int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "diskscope",
	Short: "Concurrent large-file and subtree-size scanner",
	Long: `Diskscope walks your disk concurrently, finds large files and opaque
packages over a size threshold, caches expensive directory sizes between
runs, and can delete what you select.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for large files and packages",
	Long:  `Scans the configured roots and reports everything over the size threshold.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx, cancel := signalContext()
		defer cancel()

		if interactive {
			return ui.Run(ctx, env.scn)
		}

		fmt.Printf("Scanning %d root(s)...\n", len(env.scanRoots))
		final, err := env.scn.Scan(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scan interrupted: %v\n", err)
		}
		printSnapshot(final)

		if verbose {
			printPerfStats(env.monitor)
		}
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [path...]",
	Short: "Scan, then delete matching results",
	Long: `Scans the configured roots and deletes the results whose paths match the
given arguments. With no arguments nothing is deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("no paths given; refusing to delete everything")
		}
		env, err := buildEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx, cancel := signalContext()
		defer cancel()

		fmt.Printf("Scanning %d root(s)...\n", len(env.scanRoots))
		final, err := env.scn.Scan(ctx)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		wanted := make(map[string]struct{}, len(args))
		for _, path := range args {
			wanted[path] = struct{}{}
		}
		var ids []string
		for _, r := range final.Results {
			if _, ok := wanted[r.Path]; ok {
				ids = append(ids, r.ID)
			}
		}
		if len(ids) == 0 {
			fmt.Println("No scan results match the given paths.")
			return nil
		}

		if dryRun {
			fmt.Printf("Dry run: would delete %d item(s).\n", len(ids))
			return nil
		}

		outcome := env.scn.DeleteItems(ctx, ids)
		fmt.Println(outcome.Describe())
		for i, path := range outcome.FailedPaths {
			fmt.Fprintf(os.Stderr, "  failed: %s: %s\n", path, outcome.ErrorMessages[i])
		}
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persisted scan cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the size of the persisted scan cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		size, err := adapter.TotalSize()
		if err != nil {
			return fmt.Errorf("failed to read cache size: %w", err)
		}
		fmt.Printf("Persisted scan cache: %s\n", utils.FormatBytes(size))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all persisted scan cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		if err := adapter.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Persisted scan cache cleared.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	scanCmd.Flags().StringSliceVarP(&roots, "root", "r", nil, "root directory to scan (repeatable)")
	scanCmd.Flags().StringVarP(&threshold, "threshold", "t", "", "minimum result size, e.g. 50MB")
	scanCmd.Flags().StringSliceVarP(&excludes, "exclude", "e", nil, "name to exclude at every depth (repeatable)")
	scanCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "interactive terminal UI")
	scanCmd.Flags().IntVar(&topN, "top", 25, "number of ranked results to print")

	cleanCmd.Flags().StringSliceVarP(&roots, "root", "r", nil, "root directory to scan (repeatable)")
	cleanCmd.Flags().StringVarP(&threshold, "threshold", "t", "", "minimum result size, e.g. 50MB")
	cleanCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report without deleting")

	cacheCmd.AddCommand(cacheShowCmd, cacheClearCmd)
	rootCmd.AddCommand(scanCmd, cleanCmd, cacheCmd)
}

// env bundles the wired-together core components for one CLI invocation.
type env struct {
	cfg       *config.Config
	info      *platform.Info
	scanRoots []string
	scn       *scanner.Scanner
	updater   *batch.Updater
	serial    *queue.Queue
	monitor   *perf.Monitor
	adapter   *cache.PersistenceAdapter
}

func buildEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	info, err := platform.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform info: %w", err)
	}

	if threshold != "" {
		cfg.SizeThreshold = threshold
	}
	if len(excludes) > 0 {
		cfg.ExcludeNames = append(cfg.ExcludeNames, excludes...)
	}

	scanRoots := roots
	if len(scanRoots) == 0 {
		scanRoots = cfg.Roots
	}
	if len(scanRoots) == 0 {
		scanRoots = info.ScanRoots
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	updater := batch.New(cfg.Debounce())
	serial := queue.New()
	monitor := perf.NewMonitor(
		perf.WithSlowThreshold(cfg.SlowOpThreshold()),
		perf.WithLogger(logger),
		perf.WithPresentationCheck(updater.OnLoop),
	)
	sizes := scanner.NewSizeCache(cfg.CacheMaxBytes(), cfg.CacheTTL())

	scn := scanner.New(scanner.Options{
		Roots:            scanRoots,
		Threshold:        cfg.Threshold(),
		ExcludeNames:     append(append([]string{}, cfg.ExcludeNames...), info.ExcludedNames...),
		PackageNames:     append(append([]string{}, cfg.PackageNames...), info.PackageNames...),
		PackageSuffixes:  append(append([]string{}, cfg.PackageSuffixes...), info.PackageSuffixes...),
		ChunkFloor:       cfg.Scan.ChunkFloor,
		ChunkDivisor:     cfg.Scan.ChunkDivisor,
		SnapshotInterval: cfg.SnapshotInterval(),
		SnapshotBatch:    cfg.Scan.SnapshotBatch,
		Protected:        info.IsProtected,
	}, sizes, updater, serial, monitor)

	e := &env{
		cfg:       cfg,
		info:      info,
		scanRoots: scanRoots,
		scn:       scn,
		updater:   updater,
		serial:    serial,
		monitor:   monitor,
	}

	if cfg.Cache.Persist {
		adapter, err := openAdapter()
		if err != nil {
			logger.Warn("persisted cache unavailable", slog.Any("error", err))
		} else {
			e.adapter = adapter
			if err := scn.LoadSizes(adapter); err != nil {
				logger.Warn("could not warm scan cache", slog.Any("error", err))
			}
		}
	}
	return e, nil
}

// close flushes the size cache to disk and tears the updater down.
func (e *env) close() {
	if e.adapter != nil {
		if err := e.scn.SaveSizes(e.adapter, e.cfg.CacheTTL()); err != nil {
			slog.Warn("could not persist scan cache", slog.Any("error", err))
		}
	}
	e.serial.CancelAll()
	e.updater.Close()
}

func openAdapter() (*cache.PersistenceAdapter, error) {
	dataDir, err := platform.DataDir()
	if err != nil {
		return nil, err
	}
	return cache.NewPersistenceAdapter(dataDir)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		path, err := config.EnsureConfigExists()
		if err != nil {
			// Fall back to defaults when the config dir is unavailable.
			return config.GetDefault(), nil
		}
		configPath = path
	}
	return config.Load(configPath)
}

func printSnapshot(snap scanner.Snapshot) {
	fmt.Printf("\nScan complete: %d result(s), %s total, %d entries visited in %s\n\n",
		len(snap.Results), utils.FormatBytes(snap.TotalSize), snap.ProcessedCount, snap.Elapsed.Round(10*time.Millisecond))
	for i, r := range snap.Results {
		if i >= topN {
			fmt.Printf("... and %d more (raise --top to see them)\n", len(snap.Results)-topN)
			break
		}
		fmt.Printf("%-10s %-8s [%s] %s\n", utils.FormatBytes(r.Size), r.Kind, r.ID[:8], r.Path)
	}
}

func printPerfStats(monitor *perf.Monitor) {
	fmt.Println("\nOperation timings:")
	for _, op := range monitor.Operations() {
		if stats, ok := monitor.Stats(op); ok {
			fmt.Printf("  %-22s count=%d avg=%s min=%s max=%s\n",
				op, stats.Count, stats.Average, stats.Min, stats.Max)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
