// Package config handles xdpstats configuration.
//
// Configuration is loaded with overlay semantics:
//
//  1. Start with built-in defaults (embedded from default.toml)
//  2. Overlay with config file values (if the file exists)
//  3. CLI flags and environment variables override at runtime
//
// If the config file exists but is invalid, Load returns an error
// rather than silently falling back to defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/bpffs"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is the default path to the config file.
const DefaultConfigPath = "/etc/xdpstats/xdpstats.toml"

// Config is the top-level configuration.
type Config struct {
	Pin     PinConfig     `toml:"pin"`
	Program ProgramConfig `toml:"program"`
	Stats   StatsConfig   `toml:"stats"`
	Logging LoggingConfig `toml:"logging"`
}

// PinConfig locates the shared stats map.
type PinConfig struct {
	BaseDir string `toml:"base_dir"`
	MapName string `toml:"map_name"`
}

// Layout returns the PinLayout described by c.
func (c PinConfig) Layout() (bpffs.PinLayout, error) {
	return bpffs.NewPinLayout(c.BaseDir, c.MapName)
}

// ProgramConfig selects the XDP program to load.
type ProgramConfig struct {
	Object string              `toml:"object"`
	Name   string              `toml:"name"`
	Mode   xdpstats.AttachMode `toml:"mode"`
}

// StatsConfig controls the stats reporter.
type StatsConfig struct {
	Interval time.Duration `toml:"interval"`
	Settle   time.Duration `toml:"settle"`
	Retry    RetryConfig   `toml:"retry"`
}

// RetryConfig is the backoff applied when the pinned map cannot be
// reopened.
type RetryConfig struct {
	Initial     time.Duration `toml:"initial"`
	Max         time.Duration `toml:"max"`
	Multiplier  float64       `toml:"multiplier"`
	MaxAttempts int           `toml:"max_attempts"`
}

// LoggingConfig controls logging behaviour.
type LoggingConfig struct {
	// Level is the log spec (e.g. "info" or "info,reporter=debug").
	Level string `toml:"level"`
	// Format is the output format: "text" or "json".
	Format string `toml:"format"`
	// Components is an alternative way to give per-component levels.
	Components map[string]string `toml:"components"`
}

// ToSpec converts the LoggingConfig to a log spec string. Level takes
// precedence over Components.
func (c *LoggingConfig) ToSpec() string {
	if c.Level != "" {
		return c.Level
	}
	if len(c.Components) == 0 {
		return ""
	}

	names := make([]string, 0, len(c.Components))
	for name := range c.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := []string{"info"}
	for _, name := range names {
		parts = append(parts, name+"="+c.Components[name])
	}
	return strings.Join(parts, ",")
}

// DefaultConfig returns the configuration from the embedded
// default.toml.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// Load reads configuration from path with overlay semantics:
//   - file missing: defaults, no error
//   - file valid: file values overlaid onto defaults
//   - file invalid: error
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := c.Pin.Layout(); err != nil {
		return fmt.Errorf("[pin]: %w", err)
	}
	if c.Stats.Interval <= 0 {
		return fmt.Errorf("[stats] interval must be positive, got %s", c.Stats.Interval)
	}
	if c.Stats.Settle < 0 {
		return fmt.Errorf("[stats] settle must not be negative, got %s", c.Stats.Settle)
	}
	r := c.Stats.Retry
	switch {
	case r.Initial <= 0:
		return fmt.Errorf("[stats.retry] initial must be positive, got %s", r.Initial)
	case r.Max < r.Initial:
		return fmt.Errorf("[stats.retry] max %s is less than initial %s", r.Max, r.Initial)
	case r.Multiplier < 1:
		return fmt.Errorf("[stats.retry] multiplier must be at least 1, got %g", r.Multiplier)
	case r.MaxAttempts < 0:
		return fmt.Errorf("[stats.retry] max_attempts must not be negative, got %d", r.MaxAttempts)
	}
	return nil
}
