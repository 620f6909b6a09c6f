package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/diskscope/internal/platform"
	"github.com/fenilsonani/diskscope/pkg/utils"
)

// Config represents the application configuration
type Config struct {
	// Roots are the directories to scan. Empty means the platform default.
	Roots []string `yaml:"roots"`

	// SizeThreshold is the minimum size for a result, e.g. "50MB".
	SizeThreshold string `yaml:"size_threshold"`

	// ExcludeNames are directory or file names skipped at every depth.
	ExcludeNames []string `yaml:"exclude_names"`

	// PackageNames and PackageSuffixes mark opaque packages: directories
	// sized as one unit and never recursed into.
	PackageNames    []string `yaml:"package_names"`
	PackageSuffixes []string `yaml:"package_suffixes"`

	Cache CacheConfig `yaml:"cache"`
	Scan  ScanConfig  `yaml:"scan"`

	// DebounceMs is the presentation-update coalescing window.
	DebounceMs int `yaml:"debounce_ms"`

	// SlowOpThresholdMs is the duration above which a single operation
	// sample logs a warning.
	SlowOpThresholdMs int `yaml:"slow_op_threshold_ms"`

	Verbose bool `yaml:"verbose"`
}

// CacheConfig bounds the in-memory result cache and its disk persistence.
type CacheConfig struct {
	MaxBytes   string `yaml:"max_bytes"`   // e.g. "100MB"
	TTLSeconds int    `yaml:"ttl_seconds"` // entry validity window
	Persist    bool   `yaml:"persist"`     // warm/flush cache across runs
}

// ScanConfig holds traversal tuning knobs.
type ScanConfig struct {
	// SnapshotIntervalMs forces a snapshot publish at least this often.
	SnapshotIntervalMs int `yaml:"snapshot_interval_ms"`

	// SnapshotBatch forces a publish after this many newly merged items.
	SnapshotBatch int `yaml:"snapshot_batch"`

	// ChunkFloor and ChunkDivisor shape the concurrent summation chunks:
	// chunk size = max(ChunkFloor, fileCount/ChunkDivisor).
	ChunkFloor   int `yaml:"chunk_floor"`
	ChunkDivisor int `yaml:"chunk_divisor"`
}

// Load loads configuration from a file
func Load(configPath string) (*Config, error) {
	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for _, root := range c.Roots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("scan root must be absolute: %s", root)
		}
	}

	if c.SizeThreshold != "" {
		if _, err := utils.ParseSize(c.SizeThreshold); err != nil {
			return fmt.Errorf("invalid size_threshold: %w", err)
		}
	}
	if c.Cache.MaxBytes != "" {
		if _, err := utils.ParseSize(c.Cache.MaxBytes); err != nil {
			return fmt.Errorf("invalid cache.max_bytes: %w", err)
		}
	}

	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must be >= 0")
	}
	if c.Scan.SnapshotIntervalMs < 0 {
		return fmt.Errorf("scan.snapshot_interval_ms must be >= 0")
	}
	if c.Scan.SnapshotBatch < 0 {
		return fmt.Errorf("scan.snapshot_batch must be >= 0")
	}
	if c.Scan.ChunkFloor < 0 || c.Scan.ChunkDivisor < 0 {
		return fmt.Errorf("scan chunk tuning values must be >= 0")
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must be >= 0")
	}
	if c.SlowOpThresholdMs < 0 {
		return fmt.Errorf("slow_op_threshold_ms must be >= 0")
	}

	return nil
}

// Threshold returns the parsed size threshold in bytes.
func (c *Config) Threshold() int64 {
	size, err := utils.ParseSize(c.SizeThreshold)
	if err != nil || size <= 0 {
		return DefaultThresholdBytes
	}
	return size
}

// CacheMaxBytes returns the parsed cache bound in bytes.
func (c *Config) CacheMaxBytes() int64 {
	size, err := utils.ParseSize(c.Cache.MaxBytes)
	if err != nil || size <= 0 {
		return DefaultCacheMaxBytes
	}
	return size
}

// CacheTTL returns the cache entry validity window.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return DefaultCacheTTL
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Debounce returns the presentation coalescing window.
func (c *Config) Debounce() time.Duration {
	if c.DebounceMs <= 0 {
		return DefaultDebounce
	}
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// SnapshotInterval returns the maximum time between snapshot publishes.
func (c *Config) SnapshotInterval() time.Duration {
	if c.Scan.SnapshotIntervalMs <= 0 {
		return DefaultSnapshotInterval
	}
	return time.Duration(c.Scan.SnapshotIntervalMs) * time.Millisecond
}

// SlowOpThreshold returns the slow-operation warning threshold.
func (c *Config) SlowOpThreshold() time.Duration {
	if c.SlowOpThresholdMs <= 0 {
		return DefaultSlowOpThreshold
	}
	return time.Duration(c.SlowOpThresholdMs) * time.Millisecond
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	configDir, err := platform.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(GetDefault(), configPath); err != nil {
			return "", err
		}
	}

	return configPath, nil
}
