// Package config resolves the backend endpoint and local file paths
// from a YAML file and environment overrides.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// AppName is the application directory name under XDG config.
const AppName = "caltodo"

var (
	ErrMissingURL     = errors.New("supabase url is not configured (set CALTODO_SUPABASE_URL)")
	ErrMissingAnonKey = errors.New("supabase anon key is not configured (set CALTODO_SUPABASE_ANON_KEY)")
)

// Config is the full application configuration.
type Config struct {
	Supabase SupabaseConfig `yaml:"supabase"`
	// StatePath is where local preferences are persisted.
	StatePath string `yaml:"state_path" env:"CALTODO_STATE_PATH"`
	// LogPath receives log output while the TUI owns the terminal.
	LogPath string `yaml:"log_path" env:"CALTODO_LOG_PATH"`
	Debug   bool   `yaml:"debug" env:"CALTODO_DEBUG"`
}

// SupabaseConfig locates the hosted backend project.
type SupabaseConfig struct {
	URL     string `yaml:"url" env:"CALTODO_SUPABASE_URL"`
	AnonKey string `yaml:"anon_key" env:"CALTODO_SUPABASE_ANON_KEY"`
}

// Load reads the config file at path (or the default location when
// path is empty) and applies environment overrides. A missing file is
// fine as long as the environment supplies the backend settings.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("CALTODO_CONFIG")
	}
	if path == "" {
		path = filepath.Join(DefaultConfigDir(), "config.yaml")
	}

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, err
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, err
		}
	}

	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(DefaultConfigDir(), "prefs.json")
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(DefaultConfigDir(), "caltodo.log")
	}

	if cfg.Supabase.URL == "" {
		return Config{}, ErrMissingURL
	}
	if cfg.Supabase.AnonKey == "" {
		return Config{}, ErrMissingAnonKey
	}
	return cfg, nil
}

// DefaultConfigDir returns XDG_CONFIG_HOME/caltodo, falling back to
// $HOME/.config/caltodo.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}
