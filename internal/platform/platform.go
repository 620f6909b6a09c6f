// Package platform supplies OS-specific defaults: scan roots, the
// app-private data directory, opaque package rules, and the protected paths
// the deleter must never touch.
package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

// Info contains platform-specific paths and rules.
type Info struct {
	OS       Platform
	HomeDir  string
	Username string

	// ScanRoots are the default roots when the user gives none.
	ScanRoots []string

	// PackageNames are directory names treated as opaque packages: sized as
	// one unit, never recursed into.
	PackageNames []string

	// PackageSuffixes work like PackageNames but match on extension-style
	// suffixes such as ".app".
	PackageSuffixes []string

	// ExcludedNames are skipped entirely at every depth.
	ExcludedNames []string

	// ProtectedPaths must never be deleted.
	ProtectedPaths []string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information
func GetInfo() (*Info, error) {
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	switch Detect() {
	case MacOS:
		return getMacOSInfo(currentUser.HomeDir, currentUser.Username), nil
	case Linux:
		return getLinuxInfo(currentUser.HomeDir, currentUser.Username), nil
	default:
		return nil, ErrUnsupportedPlatform
	}
}

func getMacOSInfo(homeDir, username string) *Info {
	return &Info{
		OS:        MacOS,
		HomeDir:   homeDir,
		Username:  username,
		ScanRoots: []string{homeDir},
		PackageNames: []string{
			"node_modules",
		},
		PackageSuffixes: []string{
			".app",
			".framework",
			".bundle",
			".photoslibrary",
			".xcarchive",
		},
		ExcludedNames: []string{
			".Trash",
			".git",
			"Library",
		},
		ProtectedPaths: commonProtectedPaths(homeDir,
			"/System",
			"/Applications",
			"/Library",
			"/private",
		),
	}
}

func getLinuxInfo(homeDir, username string) *Info {
	return &Info{
		OS:        Linux,
		HomeDir:   homeDir,
		Username:  username,
		ScanRoots: []string{homeDir},
		PackageNames: []string{
			"node_modules",
		},
		PackageSuffixes: []string{
			".AppImage",
		},
		ExcludedNames: []string{
			".git",
			".local",
			".config",
		},
		ProtectedPaths: commonProtectedPaths(homeDir,
			"/snap",
			"/opt",
		),
	}
}

func commonProtectedPaths(homeDir string, extra ...string) []string {
	paths := []string{
		"/",
		"/bin",
		"/boot",
		"/dev",
		"/etc",
		"/lib",
		"/lib64",
		"/proc",
		"/root",
		"/run",
		"/sbin",
		"/srv",
		"/sys",
		"/usr",
		"/var",
		homeDir,
	}
	return append(paths, extra...)
}

// IsProtected reports whether path must never be deleted. Protected system
// directories shield their whole subtree; the home directory is protected
// only itself, since scans deliberately target its contents.
func (i *Info) IsProtected(path string) bool {
	clean := filepath.Clean(path)
	for _, protected := range i.ProtectedPaths {
		if clean == protected {
			return true
		}
		if protected != i.HomeDir && protected != "/" && strings.HasPrefix(clean, protected+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// DataDir returns the app-private directory used for the persisted scan
// cache, creating nothing.
func DataDir() (string, error) {
	switch Detect() {
	case MacOS:
		currentUser, err := user.Current()
		if err != nil {
			return "", err
		}
		return filepath.Join(currentUser.HomeDir, "Library", "Application Support", "diskscope"), nil
	case Linux:
		if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
			return filepath.Join(dataDir, "diskscope"), nil
		}
		currentUser, err := user.Current()
		if err != nil {
			return "", err
		}
		return filepath.Join(currentUser.HomeDir, ".local", "share", "diskscope"), nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

// ConfigDir returns the user's config directory for diskscope.
func ConfigDir() (string, error) {
	switch Detect() {
	case MacOS:
		currentUser, err := user.Current()
		if err != nil {
			return "", err
		}
		return filepath.Join(currentUser.HomeDir, ".config", "diskscope"), nil
	case Linux:
		if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
			return filepath.Join(configDir, "diskscope"), nil
		}
		currentUser, err := user.Current()
		if err != nil {
			return "", err
		}
		return filepath.Join(currentUser.HomeDir, ".config", "diskscope"), nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
