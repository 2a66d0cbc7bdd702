// Package config loads and persists the YAML configuration file.
// Defaults are applied first and the file is unmarshalled over them,
// so a partial file only overrides what it mentions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"github.com/juhradial/hidpp/pkg/haptics"
)

// HapticsConfig tunes feedback output. Intensity values are percent.
type HapticsConfig struct {
	Enabled   bool `yaml:"enabled" default:"true"`
	Intensity int  `yaml:"intensity" default:"50"`

	MenuAppear       int `yaml:"menu_appear" default:"20"`
	SliceChange      int `yaml:"slice_change" default:"40"`
	SelectionConfirm int `yaml:"selection_confirm" default:"80"`
	InvalidAction    int `yaml:"invalid_action" default:"30"`

	DebounceMs        int `yaml:"debounce_ms" default:"20"`
	SliceDebounceMs   int `yaml:"slice_debounce_ms" default:"20"`
	ReentryDebounceMs int `yaml:"reentry_debounce_ms" default:"50"`
}

// BatteryConfig tunes the polling probe.
type BatteryConfig struct {
	IntervalMs      int    `yaml:"interval_ms" default:"2000"`
	ConflictProcess string `yaml:"conflict_process" default:"logid"`
}

// Config is the full configuration file.
type Config struct {
	LogLevel string        `yaml:"log_level" default:"info"`
	Haptics  HapticsConfig `yaml:"haptics"`
	Battery  BatteryConfig `yaml:"battery"`
}

// Default returns the stock configuration.
func Default() *Config {
	cfg := new(Config)
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads the configuration at path. A missing file is created
// with defaults so the user has something to edit.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// HapticSettings converts the file representation into scheduler
// settings.
func (c *Config) HapticSettings() haptics.Settings {
	return haptics.Settings{
		Enabled:   c.Haptics.Enabled,
		Intensity: c.Haptics.Intensity,
		PerEvent: map[haptics.Event]int{
			haptics.MenuAppear:       c.Haptics.MenuAppear,
			haptics.SliceChange:      c.Haptics.SliceChange,
			haptics.SelectionConfirm: c.Haptics.SelectionConfirm,
			haptics.InvalidAction:    c.Haptics.InvalidAction,
		},
		Debounce:        time.Duration(c.Haptics.DebounceMs) * time.Millisecond,
		SliceDebounce:   time.Duration(c.Haptics.SliceDebounceMs) * time.Millisecond,
		ReentryDebounce: time.Duration(c.Haptics.ReentryDebounceMs) * time.Millisecond,
	}
}

// BatteryInterval returns the polling interval as a duration.
func (c *Config) BatteryInterval() time.Duration {
	return time.Duration(c.Battery.IntervalMs) * time.Millisecond
}

// DefaultPath returns the per-user config location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "hidpp", "config.yaml")
	}
	return "config.yaml"
}
