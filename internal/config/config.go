// Package config loads the serving configuration from the environment
// and an optional TOML file. Environment variables win over the file for
// the address and path settings; presets only come from the file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Preset names a reusable bounding box plus encode quality, so callers
// can say "thumb" instead of repeating dimensions.
type Preset struct {
	MaxWidth  int  `toml:"max_width"`
	MaxHeight int  `toml:"max_height"`
	Force     bool `toml:"force"`
	Quality   int  `toml:"quality"`
}

// Config holds everything the serve command needs.
type Config struct {
	ServerAddr   string
	SourceDir    string
	RenditionDir string
	DatabasePath string

	RateLimitPerMinute int
	PrewarmInterval    time.Duration
	JanitorInterval    time.Duration
	JanitorMaxAge      time.Duration

	Presets map[string]Preset
}

// duration lets TOML carry values like "6h" or "90s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type fileConfig struct {
	ServerAddr   string `toml:"server_addr"`
	SourceDir    string `toml:"source_dir"`
	RenditionDir string `toml:"rendition_dir"`
	DatabasePath string `toml:"database_path"`

	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	PrewarmInterval    duration `toml:"prewarm_interval"`
	JanitorInterval    duration `toml:"janitor_interval"`
	JanitorMaxAge      duration `toml:"janitor_max_age"`

	Presets map[string]Preset `toml:"presets"`
}

var presetNameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Load builds a Config from defaults, the TOML file at path (skipped
// when path is empty and no IMAGEFIT_CONFIG is set), and environment
// overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ServerAddr:         ":8080",
		SourceDir:          "./data/source",
		RenditionDir:       "./data/renditions",
		DatabasePath:       "./data/imagefit.db",
		RateLimitPerMinute: 120,
		PrewarmInterval:    time.Minute,
		JanitorInterval:    6 * time.Hour,
		JanitorMaxAge:      30 * 24 * time.Hour,
		Presets:            map[string]Preset{},
	}

	if path == "" {
		path = os.Getenv("IMAGEFIT_CONFIG")
	}
	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		applyFile(cfg, fc)
	}

	cfg.ServerAddr = getEnv("IMAGEFIT_ADDR", cfg.ServerAddr)
	cfg.SourceDir = getEnv("IMAGEFIT_SOURCE_DIR", cfg.SourceDir)
	cfg.RenditionDir = getEnv("IMAGEFIT_RENDITION_DIR", cfg.RenditionDir)
	cfg.DatabasePath = getEnv("IMAGEFIT_DATABASE_PATH", cfg.DatabasePath)

	if err := validatePresets(cfg.Presets); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.ServerAddr != "" {
		cfg.ServerAddr = fc.ServerAddr
	}
	if fc.SourceDir != "" {
		cfg.SourceDir = fc.SourceDir
	}
	if fc.RenditionDir != "" {
		cfg.RenditionDir = fc.RenditionDir
	}
	if fc.DatabasePath != "" {
		cfg.DatabasePath = fc.DatabasePath
	}
	if fc.RateLimitPerMinute > 0 {
		cfg.RateLimitPerMinute = fc.RateLimitPerMinute
	}
	if fc.PrewarmInterval.Duration > 0 {
		cfg.PrewarmInterval = fc.PrewarmInterval.Duration
	}
	if fc.JanitorInterval.Duration > 0 {
		cfg.JanitorInterval = fc.JanitorInterval.Duration
	}
	if fc.JanitorMaxAge.Duration > 0 {
		cfg.JanitorMaxAge = fc.JanitorMaxAge.Duration
	}
	for name, p := range fc.Presets {
		cfg.Presets[name] = normalizePreset(p)
	}
}

// normalizePreset fills box and quality defaults the same way a Session
// would, so a preset behaves identically to the equivalent direct calls.
func normalizePreset(p Preset) Preset {
	if p.MaxWidth <= 0 {
		p.MaxWidth = 1200
	}
	if p.MaxHeight <= 0 {
		p.MaxHeight = 800
	}
	if p.Quality <= 0 || p.Quality > 100 {
		p.Quality = 75
	}
	return p
}

func validatePresets(presets map[string]Preset) error {
	for name := range presets {
		if !presetNameRE.MatchString(name) {
			return fmt.Errorf("invalid preset name %q", name)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
