// Package paths resolves the configuration directory, the image root and
// the catalog location.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".hoard"
	DefaultRootDirName   = ".hoard-images"
	CatalogFileName      = "catalog.db"
	appDirName           = "hoard"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "HOARD_CONFIG_DIR"
	EnvDataDir   = "HOARD_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/hoard (fallback ~/.config/hoard)
// macOS:   ~/Library/Application Support/hoard
// Windows: %APPDATA%/hoard
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	return userConfigSubdir()
}

// DefaultDataDir returns the platform-specific directory for derived data
// such as the catalog.
//
// Linux:   $XDG_DATA_HOME/hoard (fallback ~/.local/share/hoard)
// macOS:   ~/Library/Application Support/hoard
// Windows: %APPDATA%/hoard
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	}
	return userConfigSubdir()
}

func xdgDir(env string, fallback ...string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), appDirName)...), nil
}

func userConfigSubdir() (string, error) {
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName), nil
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > HOARD_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveRoot returns the image root following the precedence chain:
// flag > config value > HOARD_DATA_DIR env > $(CWD)/.hoard-images.
func ResolveRoot(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultRootDirName), nil
}

// ResolveCatalog returns the catalog database path: the config value when
// set, otherwise catalog.db in DefaultDataDir().
func ResolveCatalog(configValue string) (string, error) {
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, CatalogFileName), nil
}
