package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "supabase:\n  url: https://proj.supabase.co\n  anon_key: anon-123\nstate_path: " + filepath.Join(dir, "prefs.json") + "\ndebug: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Supabase.URL != "https://proj.supabase.co" || cfg.Supabase.AnonKey != "anon-123" {
		t.Fatalf("unexpected backend settings: %+v", cfg.Supabase)
	}
	if !cfg.Debug {
		t.Fatalf("expected debug enabled")
	}
	if cfg.LogPath == "" {
		t.Fatalf("expected a default log path")
	}
}

func TestLoadFromEnvironmentWithoutFile(t *testing.T) {
	t.Setenv("CALTODO_SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("CALTODO_SUPABASE_ANON_KEY", "env-anon")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Supabase.URL != "https://env.supabase.co" {
		t.Fatalf("expected environment override, got %q", cfg.Supabase.URL)
	}
}

func TestLoadRequiresBackendSettings(t *testing.T) {
	t.Setenv("CALTODO_SUPABASE_URL", "")
	t.Setenv("CALTODO_SUPABASE_ANON_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}

	t.Setenv("CALTODO_SUPABASE_URL", "https://proj.supabase.co")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrMissingAnonKey) {
		t.Fatalf("expected ErrMissingAnonKey, got %v", err)
	}
}
