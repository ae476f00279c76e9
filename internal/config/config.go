package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.imsg/config.toml.
//
// Every field has a usable zero-value default; a missing file is not an
// error at the daemon level. The daemon materializes the defaults on
// first run so the file is there to edit.
type Config struct {
	// StorePath overrides the default Messages database location.
	StorePath string `toml:"store_path"`
	// OutboundDir is the only directory outbound attachment sources may
	// live in unless AllowArbitraryPaths is set. Empty means the default
	// under the base dir.
	OutboundDir string `toml:"outbound_dir"`
	// StagingDir overrides where outbound files are staged before sending.
	StagingDir string `toml:"staging_dir"`
	// AllowArbitraryPaths disables outbound path containment.
	AllowArbitraryPaths bool `toml:"allow_arbitrary_paths"`
	// MaxAttachmentBytes caps outbound attachment size. 0 means unlimited.
	MaxAttachmentBytes int64 `toml:"max_attachment_bytes"`
	// StagingTTLHours controls how long staged copies are kept.
	StagingTTLHours int `toml:"staging_ttl_hours"`
	// PreferredService pins outbound sends to one service ("iMessage" or
	// "SMS"). Empty means try iMessage first, then SMS.
	PreferredService string `toml:"preferred_service"`
	// PollIntervalMS is the poll timer period.
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		StagingTTLHours: 24,
		PollIntervalMS:  2000,
	}
}

// StagingTTL returns the staging TTL as a duration.
func (c *Config) StagingTTL() time.Duration {
	hours := c.StagingTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// PollInterval returns the poll timer period as a duration.
func (c *Config) PollInterval() time.Duration {
	ms := c.PollIntervalMS
	if ms <= 0 {
		ms = 2000
	}
	return time.Duration(ms) * time.Millisecond
}

// Load reads config from the given path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.StagingTTLHours <= 0 {
		cfg.StagingTTLHours = 24
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 2000
	}
	return cfg, nil
}

// LoadOrInit reads config from the given path, writing the defaults to
// disk first when no file exists yet.
func LoadOrInit(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
