// Package config loads and saves the praxis TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/praxis/internal/fees"
	"github.com/theirongolddev/praxis/internal/forecast"
	"github.com/theirongolddev/praxis/internal/viability"
)

// Config holds all praxis configuration.
type Config struct {
	Practice  PracticeConfig  `toml:"practice"`
	Forecast  ForecastConfig  `toml:"forecast"`
	Viability ViabilityConfig `toml:"viability"`
	Store     StoreConfig     `toml:"store"`
	Daemon    DaemonConfig    `toml:"daemon"`
	Log       LogConfig       `toml:"log"`
}

// PracticeConfig describes the practice and its payment provider.
type PracticeConfig struct {
	Name       string  `toml:"name,omitempty"`
	FeePercent float64 `toml:"fee_percent"`
	Currency   string  `toml:"currency"`
}

// ForecastConfig holds forecast horizons.
type ForecastConfig struct {
	MonthsAhead        int `toml:"months_ahead"`
	HistoryMonths      int `toml:"history_months"`
	MaxBreakEvenMonths int `toml:"max_break_even_months"`
}

// ViabilityConfig holds the improvement target.
type ViabilityConfig struct {
	TargetScore float64 `toml:"target_score"`
}

// StoreConfig locates the database.
type StoreConfig struct {
	Path string `toml:"path,omitempty"`
}

// DaemonConfig holds background service settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	Refresh      string `toml:"refresh"` // cron spec
	EventsBuffer int    `toml:"events_buffer"`
	Scope        string `toml:"scope"`
	Compare      string `toml:"compare"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Practice: PracticeConfig{
			FeePercent: fees.DefaultPercent,
			Currency:   "EUR",
		},
		Forecast: ForecastConfig{
			MonthsAhead:        forecast.DefaultMonthsAhead,
			HistoryMonths:      12,
			MaxBreakEvenMonths: fees.DefaultMaxMonths,
		},
		Viability: ViabilityConfig{
			TargetScore: viability.DefaultTargetScore,
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8790",
			Refresh:      "@every 15m",
			EventsBuffer: 200,
			Scope:        "month",
			Compare:      "plan",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "praxis")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "praxis")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultDBPath returns the XDG-compliant database location.
func DefaultDBPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "praxis", "praxis.db")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "praxis", "praxis.db")
}

// DBPath returns the configured database path, falling back to DefaultDBPath.
func (c Config) DBPath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DefaultDBPath()
}

// Load reads the config file, returning defaults if it doesn't exist.
// Environment overrides are applied on top of the file.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if p := os.Getenv("PRAXIS_DB"); p != "" {
		cfg.Store.Path = p
	}
	if v := os.Getenv("PRAXIS_FEE_PERCENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing PRAXIS_FEE_PERCENT: %w", err)
		}
		cfg.Practice.FeePercent = f
	}
	if l := os.Getenv("PRAXIS_LOG_LEVEL"); l != "" {
		cfg.Log.Level = l
	}
	return nil
}

// Validate reports the first setting the engine cannot run with.
func (c Config) Validate() error {
	if c.Practice.FeePercent < 0 || c.Practice.FeePercent > 100 {
		return fmt.Errorf("practice.fee_percent %.2f outside [0, 100]", c.Practice.FeePercent)
	}
	if c.Forecast.MonthsAhead <= 0 {
		return fmt.Errorf("forecast.months_ahead must be positive, got %d", c.Forecast.MonthsAhead)
	}
	if c.Forecast.HistoryMonths <= 0 {
		return fmt.Errorf("forecast.history_months must be positive, got %d", c.Forecast.HistoryMonths)
	}
	if c.Forecast.MaxBreakEvenMonths <= 0 {
		return fmt.Errorf("forecast.max_break_even_months must be positive, got %d", c.Forecast.MaxBreakEvenMonths)
	}
	if c.Viability.TargetScore <= 0 || c.Viability.TargetScore > 100 {
		return fmt.Errorf("viability.target_score %.1f outside (0, 100]", c.Viability.TargetScore)
	}
	if c.Daemon.EventsBuffer <= 0 {
		return fmt.Errorf("daemon.events_buffer must be positive, got %d", c.Daemon.EventsBuffer)
	}
	if _, err := cron.ParseStandard(c.Daemon.Refresh); err != nil {
		return fmt.Errorf("daemon.refresh %q: %w", c.Daemon.Refresh, err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
