// Package config handles configuration loading and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Atharva-Kanherkar/rin/internal/episode"
	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

// Config holds all configuration for the daemon.
type Config struct {
	Sampler   SamplerConfig     `yaml:"sampler"`
	Capture   CaptureConfig     `yaml:"capture"`
	Episode   episode.Config    `yaml:"episode"`
	Signal    signal.Thresholds `yaml:"signal"`
	Knowledge KnowledgeConfig   `yaml:"knowledge"`
	Batch     BatchConfig       `yaml:"batch"`
	Notify    NotifyConfig      `yaml:"notify"`
	Logging   LoggingConfig     `yaml:"logging"`

	StoragePath string `yaml:"storage_path"`

	// ExcludedApps are dropped before extraction (case-insensitive, exact).
	ExcludedApps []string `yaml:"excluded_apps"`
}

// SamplerConfig sets the tick cadence.
type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// CaptureConfig toggles the live capture channels. The window channel is
// always on.
type CaptureConfig struct {
	Screen         bool   `yaml:"screen"`
	Audio          bool   `yaml:"audio"` // opt-in
	Mouse          bool   `yaml:"mouse"`
	Keyboard       bool   `yaml:"keyboard"`
	KeyboardDevice string `yaml:"keyboard_device"`
}

// KnowledgeConfig locates the baseline knowledge document.
type KnowledgeConfig struct {
	// BaselinePath overrides the embedded baseline when set.
	BaselinePath string `yaml:"baseline_path"`
	// Watch reloads BaselinePath when it changes on disk.
	Watch bool `yaml:"watch"`
}

// BatchConfig controls the closed-episode drain loop.
type BatchConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

// NotifyConfig controls how reactions reach the user.
type NotifyConfig struct {
	Desktop bool          `yaml:"desktop"`
	Expire  time.Duration `yaml:"expire"`
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	return &Config{
		Sampler: SamplerConfig{Interval: time.Second},
		Capture: CaptureConfig{
			Screen:   true,
			Mouse:    true,
			Keyboard: true,
		},
		Episode: episode.DefaultConfig(),
		Signal:  signal.DefaultThresholds(),
		Knowledge: KnowledgeConfig{
			Watch: true,
		},
		Batch: BatchConfig{
			Interval:  time.Minute,
			Retention: 30 * 24 * time.Hour,
		},
		Notify: NotifyConfig{
			Desktop: true,
			Expire:  8 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		StoragePath: filepath.Join(home, ".local", "share", "rin"),

		ExcludedApps: []string{
			"SearchUI.exe",
			"ShellExperienceHost.exe",
			"LockApp.exe",
			"SystemSettings.exe",
			"ApplicationFrameHost.exe",
		},
	}
}

// SearchPaths returns the locations Load tries, in order.
func SearchPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".config", "rin", "config.yaml"),
		filepath.Join(home, ".local", "share", "rin", "config.yaml"),
	}
}

// Load loads configuration from the first search path that exists,
// falling back to defaults. A file that exists but is invalid is an error.
func Load() (*Config, error) {
	for _, path := range SearchPaths() {
		cfg, err := LoadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	cfg := DefaultConfig()
	return cfg, cfg.Validate()
}

// LoadFile reads a YAML config file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.StoragePath = expandTilde(cfg.StoragePath)
	cfg.Knowledge.BaselinePath = expandTilde(cfg.Knowledge.BaselinePath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline can't run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	positive("sampler.interval", c.Sampler.Interval)
	positive("episode.max_duration", c.Episode.MaxDuration)
	positive("episode.min_duration", c.Episode.MinDuration)
	positive("batch.interval", c.Batch.Interval)
	positive("batch.retention", c.Batch.Retention)

	if c.Episode.MinDuration >= c.Episode.MaxDuration {
		errs = append(errs, fmt.Errorf("episode.min_duration (%s) must be less than episode.max_duration (%s)",
			c.Episode.MinDuration, c.Episode.MaxDuration))
	}
	if c.Episode.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("episode.history_size must not be negative"))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	if c.StoragePath == "" {
		errs = append(errs, fmt.Errorf("storage_path must be set"))
	}
	return errors.Join(errs...)
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// EnsureStorageDir creates the storage directory if it doesn't exist.
func (c *Config) EnsureStorageDir() error {
	return os.MkdirAll(c.StoragePath, 0700)
}

// IsExcluded checks if ticks from an app should be dropped.
func (c *Config) IsExcluded(appName string) bool {
	for _, app := range c.ExcludedApps {
		if strings.EqualFold(app, appName) {
			return true
		}
	}
	return false
}
