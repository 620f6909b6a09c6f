package config

import "time"

// Tuning defaults. The chunk heuristic max(50, fileCount/4) is a starting
// point, not a hard requirement; both knobs are exposed in ScanConfig.
const (
	DefaultThresholdBytes   = 50 * 1024 * 1024
	DefaultCacheMaxBytes    = 100 * 1024 * 1024
	DefaultCacheTTL         = 300 * time.Second
	DefaultDebounce         = 16 * time.Millisecond
	DefaultSnapshotInterval = 200 * time.Millisecond
	DefaultSnapshotBatch    = 50
	DefaultChunkFloor       = 50
	DefaultChunkDivisor     = 4
	DefaultSlowOpThreshold  = 500 * time.Millisecond
)

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		Roots:         []string{}, // platform default at runtime
		SizeThreshold: "50MB",
		ExcludeNames: []string{
			".git",
			".Trash",
		},
		PackageNames: []string{
			"node_modules",
		},
		PackageSuffixes: []string{
			".app",
			".framework",
			".bundle",
		},
		Cache: CacheConfig{
			MaxBytes:   "100MB",
			TTLSeconds: 300,
			Persist:    true,
		},
		Scan: ScanConfig{
			SnapshotIntervalMs: 200,
			SnapshotBatch:      DefaultSnapshotBatch,
			ChunkFloor:         DefaultChunkFloor,
			ChunkDivisor:       DefaultChunkDivisor,
		},
		DebounceMs:        16,
		SlowOpThresholdMs: 500,
		Verbose:           false,
	}
}
