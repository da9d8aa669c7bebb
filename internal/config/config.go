// Package config loads gatewatch settings from flags, environment
// variables, and an optional config file, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds everything the dashboard needs to run.
type Config struct {
	GatewayURL       string        `mapstructure:"gateway_url"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	VisibilityWindow time.Duration `mapstructure:"visibility_window"`
	FlashDuration    time.Duration `mapstructure:"flash_duration"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	JournalPath      string        `mapstructure:"journal_path"`
	LogFile          string        `mapstructure:"log_file"`
}

// Defaults mirror the gateway's own cadence: a 30-second fallback poll, a
// 30-minute visibility window, and a 600 ms highlight flash.
func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway_url", "http://localhost:8420")
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("visibility_window", 30*time.Minute)
	v.SetDefault("flash_duration", 600*time.Millisecond)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("journal_path", defaultJournalPath())
	v.SetDefault("log_file", "")
}

func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gatewatch-journal.db"
	}
	return filepath.Join(home, ".local", "share", "gatewatch", "journal.db")
}

// Load builds the configuration. flags may be nil; when given, set flags
// take precedence over environment (GATEWATCH_*) and config file values.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEWATCH")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "gatewatch"))
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is worth surfacing.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		// Dashed flag names map onto underscored config keys.
		bindings := map[string]string{
			"gateway_url":       "gateway-url",
			"poll_interval":     "poll-interval",
			"visibility_window": "visibility-window",
			"flash_duration":    "flash-duration",
			"request_timeout":   "request-timeout",
			"journal_path":      "journal",
			"log_file":          "log-file",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("gateway URL must not be empty")
	}
	return &cfg, nil
}
