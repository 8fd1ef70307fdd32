// Package store persists the small set of local preferences that live
// outside the backend: theme flag, last filter, last visible month.
// The task collection itself is never written here.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"caltodo/model"
)

// Theme values persisted in the preferences file.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Preferences is the full locally persisted state.
type Preferences struct {
	Theme        string       `json:"theme"`
	Filter       model.Filter `json:"filter,omitempty"`
	VisibleMonth string       `json:"visibleMonth,omitempty"` // YYYY-MM
}

// DefaultPreferences returns an initialized preference set.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:  ThemeLight,
		Filter: model.FilterAll,
	}
}

// Load reads preferences from a JSON file. A missing file yields
// defaults, not an error.
func Load(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultPreferences(), nil
		}
		return Preferences{}, err
	}
	return decode(data)
}

// LoadWithRecovery loads preferences and falls back to the .bak copy,
// then to defaults, when the main file is corrupted. It returns an
// optional status message for the user.
func LoadWithRecovery(path string) (Preferences, string, error) {
	prefs, err := Load(path)
	if err == nil {
		return prefs, "", nil
	}
	if !isCorrupt(err) {
		return Preferences{}, "", err
	}

	if data, bakErr := os.ReadFile(path + ".bak"); bakErr == nil {
		if recovered, decErr := decode(data); decErr == nil {
			if err := Save(path, recovered); err != nil {
				return Preferences{}, "", fmt.Errorf("restore preferences backup: %w", err)
			}
			return recovered, "Preferences recovered from backup", nil
		}
	}

	prefs = DefaultPreferences()
	if err := Save(path, prefs); err != nil {
		return Preferences{}, "", fmt.Errorf("reset corrupt preferences: %w", err)
	}
	return prefs, "Corrupt preferences replaced with defaults", nil
}

// Save writes preferences atomically (temp file + rename), keeping the
// previous content as a .bak copy.
func Save(path string, prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", prev, 0o644); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(prefs); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func decode(data []byte) (Preferences, error) {
	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, err
	}
	if prefs.Theme != ThemeDark {
		prefs.Theme = ThemeLight
	}
	if !prefs.Filter.Valid() {
		prefs.Filter = model.FilterAll
	}
	return prefs, nil
}

func isCorrupt(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
