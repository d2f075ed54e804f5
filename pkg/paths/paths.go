// Package paths provides centralized path handling for rawpipe.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/rawpipe/rawpipe/pkg/errors"
)

// Environment variable names
const (
	// EnvDataRoot is the primary environment variable for the dataset location
	EnvDataRoot = "RAWPIPE_DATA_ROOT"

	// EnvDataDir overrides the XDG data directory for rawpipe
	EnvDataDir = "RAWPIPE_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for rawpipe
	EnvConfigDir = "RAWPIPE_CONFIG_DIR"

	// EnvCacheDir overrides the XDG cache directory for rawpipe
	EnvCacheDir = "RAWPIPE_CACHE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default directories and files
const (
	// AppDirName is the directory name for rawpipe-specific files
	AppDirName = "rawpipe"

	// ConfigFileName is the name of the configuration file
	ConfigFileName = "rawpipe.toml"

	// DefaultDataDirName is the default directory name for the dataset,
	// used when neither RAWPIPE_DATA_ROOT nor the config sets one
	DefaultDataDirName = "data"

	// CheckpointsDir is the subdirectory for training checkpoints
	CheckpointsDir = "checkpoints"

	// OutputDir is the subdirectory for test outputs
	OutputDir = "output"

	// DownloadsDir is the cache subdirectory for downloaded archives
	DownloadsDir = "downloads"

	// ManifestSuffix is appended to a split name to form its listing file
	ManifestSuffix = "_filelist.txt"

	// LogFileName is the name of the log file
	LogFileName = "rawpipe.log"
)

// Paths provides centralized path management for rawpipe
type Paths interface {
	DataRoot() string
	UsedFallback() bool
	ConfigDir() string
	ConfigFilePath() string
	CacheDir() string
	DownloadsDir() string
	CheckpointsDir() string
	OutputDir() string
	SplitDir(split string) string
	ManifestPath(split string) string
	LogFilePath() string
	NormalizePath(path string) (string, error)
}

type paths struct {
	// dataRoot is the root directory all manifest entries resolve against
	dataRoot string

	// xdgData is the XDG data directory
	xdgData string

	// xdgConfig is the XDG config directory
	xdgConfig string

	// xdgCache is the XDG cache directory
	xdgCache string

	// xdgState is the XDG state directory
	xdgState string

	// usedFallback indicates if we fell back to cwd (for warning display)
	usedFallback bool
}

// New creates a new Paths instance with the given data root.
// If dataRoot is empty, it will be determined from environment variables
// or defaults.
func New(dataRoot string) (Paths, error) {
	p := &paths{}

	if dataRoot == "" {
		root, usedFallback := findDataRoot()
		p.dataRoot = root
		p.usedFallback = usedFallback
	} else {
		p.dataRoot = expandHome(dataRoot)
		p.usedFallback = false
	}

	absRoot, err := filepath.Abs(p.dataRoot)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for data root")
	}
	p.dataRoot = absRoot

	p.setupXDGDirs()

	return p, nil
}

// setupXDGDirs initializes XDG directories, respecting environment overrides
func (p *paths) setupXDGDirs() {
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		p.xdgData = expandHome(dataDir)
	} else {
		p.xdgData = filepath.Join(xdg.DataHome, AppDirName)
	}

	if configDir := os.Getenv(EnvConfigDir); configDir != "" {
		p.xdgConfig = expandHome(configDir)
	} else {
		p.xdgConfig = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	if cacheDir := os.Getenv(EnvCacheDir); cacheDir != "" {
		p.xdgCache = expandHome(cacheDir)
	} else {
		p.xdgCache = filepath.Join(xdg.CacheHome, AppDirName)
	}

	// XDG library doesn't expose StateHome on all versions, check manually
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		p.xdgState = filepath.Join(stateDir, AppDirName)
	} else {
		homeDir, _ := os.UserHomeDir()
		p.xdgState = filepath.Join(homeDir, ".local", "state", AppDirName)
	}
}

// findDataRoot determines the dataset root using the following priority:
// 1. RAWPIPE_DATA_ROOT environment variable (if set)
// 2. ./data under the current working directory (fallback)
//
// The bool return reports whether the cwd fallback was used, so callers
// can surface a warning.
func findDataRoot() (string, bool) {
	if root := os.Getenv(EnvDataRoot); root != "" {
		return expandHome(root), false
	}

	cwd, err := os.Getwd()
	if err != nil {
		return DefaultDataDirName, true
	}

	return filepath.Join(cwd, DefaultDataDirName), true
}

// expandHome expands ~ to the home directory
func expandHome(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = os.Getenv(EnvHome)
			if homeDir == "" {
				// Can't expand, return as-is
				return path
			}
		}

		if len(path) == 1 {
			return homeDir
		}

		if path[1] == '/' || path[1] == filepath.Separator {
			return filepath.Join(homeDir, path[2:])
		}

		// ~something (not the user's home)
		return path
	}

	return path
}

// DataRoot returns the root directory for the dataset
func (p *paths) DataRoot() string {
	return p.dataRoot
}

// UsedFallback returns true if the cwd-based default was used
func (p *paths) UsedFallback() bool {
	return p.usedFallback
}

// ConfigDir returns the XDG config directory for rawpipe
func (p *paths) ConfigDir() string {
	return p.xdgConfig
}

// ConfigFilePath returns the path to the user configuration file
func (p *paths) ConfigFilePath() string {
	return filepath.Join(p.xdgConfig, ConfigFileName)
}

// CacheDir returns the XDG cache directory for rawpipe
func (p *paths) CacheDir() string {
	return p.xdgCache
}

// DownloadsDir returns the directory downloaded archives are kept in
func (p *paths) DownloadsDir() string {
	return filepath.Join(p.xdgCache, DownloadsDir)
}

// GetDataSubdir returns a subdirectory path under the XDG data directory.
func (p *paths) GetDataSubdir(name string) string {
	return filepath.Join(p.xdgData, name)
}

// CheckpointsDir returns the directory for training checkpoints
func (p *paths) CheckpointsDir() string {
	return p.GetDataSubdir(CheckpointsDir)
}

// OutputDir returns the directory for test outputs
func (p *paths) OutputDir() string {
	return p.GetDataSubdir(OutputDir)
}

// SplitDir returns the directory a dataset split's images live in
func (p *paths) SplitDir(split string) string {
	return filepath.Join(p.dataRoot, split)
}

// ManifestPath returns the listing file for a dataset split.
// The listing lives at the data root, e.g. <root>/train_filelist.txt,
// and its entries are relative to the data root.
func (p *paths) ManifestPath(split string) string {
	return filepath.Join(p.dataRoot, split+ManifestSuffix)
}

// LogFilePath returns the path to the rawpipe log file
// Respects XDG_STATE_HOME if set
func (p *paths) LogFilePath() string {
	return filepath.Join(p.xdgState, LogFileName)
}

// NormalizePath normalizes a path by expanding home, making it absolute,
// and cleaning it
func (p *paths) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrInvalidInput, "empty path")
	}

	expanded := expandHome(path)

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path")
	}

	return filepath.Clean(abs), nil
}

// ExpandHome is a utility function that expands ~ in paths
func ExpandHome(path string) string {
	return expandHome(path)
}
