// Package config loads the osupp TOML configuration and holds process-wide
// switches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// StrainTimeline enables aim and speed strain timelines on osu!
	// difficulty results.
	StrainTimeline bool `toml:"strain_timeline"`

	Bridge Bridge `toml:"bridge"`
	Log    Log    `toml:"log"`
	Store  Store  `toml:"store"`
	Fetch  Fetch  `toml:"fetch"`
	Batch  Batch  `toml:"batch"`
}

type Bridge struct {
	// BuildDir holds the engine build output.
	BuildDir string `toml:"build_dir"`
	// Command starts the host process. Empty means dotnet with the host
	// assembly from BuildDir.
	Command        []string `toml:"command"`
	RequestTimeout string   `toml:"request_timeout"`
}

// Timeout parses RequestTimeout. Zero means no timeout.
func (b Bridge) Timeout() (time.Duration, error) {
	if b.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(b.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("bridge.request_timeout: %w", err)
	}
	return d, nil
}

type Log struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	Console    bool   `toml:"console"`
}

type Store struct {
	Path string `toml:"path"`
}

type Fetch struct {
	Dir               string `toml:"dir"`
	BaseURL           string `toml:"base_url"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

type Batch struct {
	Workers   int    `toml:"workers"`
	OutputDir string `toml:"output_dir"`
}

func Default() *Config {
	return &Config{
		StrainTimeline: true,
		Bridge: Bridge{
			BuildDir:       filepath.Join(XDGDataHome(), "osupp", "engine"),
			RequestTimeout: "2m",
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			Console:    true,
		},
		Store: Store{Path: DefaultDBPath()},
		Fetch: Fetch{
			Dir:               filepath.Join(XDGCacheHome(), "osupp", "beatmaps"),
			BaseURL:           "https://osu.ppy.sh",
			RequestsPerMinute: 30,
		},
		Batch: Batch{Workers: 2, OutputDir: "."},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.Bridge.Timeout(); err != nil {
		return err
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Fetch.RequestsPerMinute < 1 {
		return fmt.Errorf("fetch.requests_per_minute must be at least 1, got %d", c.Fetch.RequestsPerMinute)
	}
	return nil
}

var strainTimeline atomic.Bool

func init() { strainTimeline.Store(true) }

// SetStrainTimeline switches strain timelines on or off for the whole process.
// Sessions read it when they compute difficulty.
func SetStrainTimeline(on bool) { strainTimeline.Store(on) }

func StrainTimeline() bool { return strainTimeline.Load() }

// Apply publishes the process-wide parts of c.
func (c *Config) Apply() { SetStrainTimeline(c.StrainTimeline) }
