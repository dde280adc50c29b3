// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	// SessionsDir is the directory holding per-session patch storage.
	SessionsDir string          `toml:"sessions_dir"`
	Retention   RetentionConfig `toml:"retention"`
	Patches     PatchConfig     `toml:"patches"`
}

// RetentionConfig caps per-session patch storage.
type RetentionConfig struct {
	MaxPatches    int   `toml:"max_patches"`
	MaxTotalBytes int64 `toml:"max_total_bytes"`
}

// MaxPatchesOrDefault returns the configured cap or 500 if unset.
func (r RetentionConfig) MaxPatchesOrDefault() int {
	if r.MaxPatches <= 0 {
		return 500
	}
	return r.MaxPatches
}

// MaxTotalBytesOrDefault returns the configured byte budget or 50 MiB if unset.
func (r RetentionConfig) MaxTotalBytesOrDefault() int64 {
	if r.MaxTotalBytes <= 0 {
		return 50 << 20
	}
	return r.MaxTotalBytes
}

// PatchConfig holds patch document settings.
type PatchConfig struct {
	// NumberWidth is the zero-padding width of patch file numbers
	// (patch_007.diff at the default of 3).
	NumberWidth int `toml:"number_width"`
}

// NumberWidthOrDefault returns the configured width or 3 if unset.
func (p PatchConfig) NumberWidthOrDefault() int {
	if p.NumberWidth <= 0 {
		return 3
	}
	return p.NumberWidth
}

// SessionsDirOrDefault returns the configured sessions directory, the
// ALLY_UNDO_SESSIONS environment variable, or ~/.ally/sessions.
func (c *Config) SessionsDirOrDefault() string {
	if c != nil && c.SessionsDir != "" {
		return c.SessionsDir
	}
	if dir := os.Getenv("ALLY_UNDO_SESSIONS"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ally/sessions"
	}
	return filepath.Join(home, ".ally", "sessions")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "ally-undo", "config.toml")
}

// Load reads configuration from a TOML file. A missing file is not an
// error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
