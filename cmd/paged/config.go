package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds options loaded from the config file. The file is JSONC:
// comments and trailing commas are allowed.
type Config struct {
	DefaultCapacity int    `json:"default_capacity"`
	HistoryFile     string `json:"history_file,omitempty"`
}

// DefaultConfig returns the configuration used when no config file
// exists.
func DefaultConfig() Config {
	return Config{
		DefaultCapacity: 4096,
	}
}

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/paged/config.json if set, otherwise
// ~/.config/paged/config.json. Returns empty string if the home
// directory cannot be determined.
func getGlobalConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "paged", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "paged", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence
// (highest wins):
//  1. Defaults
//  2. Global user config
//  3. Explicit config file via configPath (must exist if non-empty)
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if globalPath := getGlobalConfigPath(); globalPath != "" {
		if err := mergeConfigFile(&cfg, globalPath, false); err != nil {
			return Config{}, err
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return Config{}, fmt.Errorf("config file not found: %s", configPath)
		}

		if err := mergeConfigFile(&cfg, configPath, true); err != nil {
			return Config{}, err
		}
	}

	if cfg.DefaultCapacity < 1 {
		return Config{}, fmt.Errorf("config: default_capacity must be positive, got %d", cfg.DefaultCapacity)
	}

	return cfg, nil
}

// mergeConfigFile overlays the config file at path onto cfg. Missing
// files are ignored unless mustExist is set.
func mergeConfigFile(cfg *Config, path string, mustExist bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}

		return fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("config %s: invalid JSONC: %w", path, err)
	}

	var overlay Config

	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return fmt.Errorf("config %s: invalid JSON: %w", path, err)
	}

	if overlay.DefaultCapacity != 0 {
		cfg.DefaultCapacity = overlay.DefaultCapacity
	}

	if overlay.HistoryFile != "" {
		cfg.HistoryFile = overlay.HistoryFile
	}

	return nil
}

// historyFile resolves the REPL history path: the configured one, or
// ~/.paged_history.
func historyFile(cfg Config) string {
	if cfg.HistoryFile != "" {
		return cfg.HistoryFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".paged_history")
}
