package config

import (
	"fmt"
)

// RecorderConfig defines settings for the signal recording file and its rotation.
type RecorderConfig struct {
	Enabled bool `json:"enabled"`
	// Path is the file location of the JSONL recording.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *RecorderConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "signals.jsonl"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
}

// Validate checks mandatory fields.
func (c RecorderConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return fmt.Errorf("recorder.path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("recorder rotation settings must not be negative")
	}
	return nil
}
