package config

import (
	"os"
	"path/filepath"
)

func xdgDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func XDGConfigHome() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

func XDGDataHome() string { return xdgDir("XDG_DATA_HOME", ".local", "share") }

func XDGCacheHome() string { return xdgDir("XDG_CACHE_HOME", ".cache") }

// DefaultPath is where Load looks when no path is given on the command line.
func DefaultPath() string {
	if v := os.Getenv("OSUPP_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(XDGConfigHome(), "osupp", "config.toml")
}

func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), "osupp", "results.db")
}
