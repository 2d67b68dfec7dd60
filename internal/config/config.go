// Package config defines service configuration and its layered loader.
package config

import (
	"context"
	"fmt"
	"strings"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// GameVersion tags stored ledgers, e.g. "v21".
	GameVersion string `koanf:"game_version"`

	// MaxSongID is the catalog bound of GameVersion. Packed arrays cover
	// songs [0, MaxSongID).
	MaxSongID int `koanf:"max_song_id"`

	// StoreBackend is "memory" or "file".
	StoreBackend string `koanf:"store_backend"`

	// StoreDir is the root directory of the file backend.
	StoreDir string `koanf:"store_dir"`

	// DedupeSize bounds the number of remembered write sessions.
	DedupeSize int `koanf:"dedupe_size"`

	// LockStripes is the number of per-player lock stripes.
	LockStripes int `koanf:"lock_stripes"`

	// MaxStagesPerWrite rejects write requests carrying more stages.
	MaxStagesPerWrite int `koanf:"max_stages_per_write"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		GameVersion:       "v21",
		MaxSongID:         1350,
		StoreBackend:      BackendMemory,
		StoreDir:          "data",
		DedupeSize:        50_000,
		LockStripes:       64,
		MaxStagesPerWrite: 64,
	}
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.GameVersion) == "":
		return fmt.Errorf("%w: game_version must not be empty", ErrInvalidConfig)
	case c.MaxSongID <= 0:
		return fmt.Errorf("%w: max_song_id must be positive", ErrInvalidConfig)
	case c.LockStripes <= 0:
		return fmt.Errorf("%w: lock_stripes must be positive", ErrInvalidConfig)
	case c.MaxStagesPerWrite <= 0:
		return fmt.Errorf("%w: max_stages_per_write must be positive", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile:
		if strings.TrimSpace(c.StoreDir) == "" {
			return fmt.Errorf("%w: store_dir must be set for the file backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	return nil
}
