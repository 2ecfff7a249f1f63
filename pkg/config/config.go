// Package config loads server settings from a YAML or Hjson file with
// environment overrides. A missing file is fine; every field has a default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"finresearch/pkg/core/utils"
)

// Default search locations, tried in order when Load is called without a path.
var defaultPaths = []string{
	"config/research.yaml",
	"config/research.yml",
	"config/research.hjson",
}

// WatchEntry names one symbol the scheduler refreshes.
type WatchEntry struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Market string `yaml:"market" json:"market"`
}

// Config holds the runtime settings shared by the API server, the stdio
// protocol server, and the acquisition tools. DATABASE_URL is deliberately
// absent: the store reads it from the environment only.
type Config struct {
	Port          int          `yaml:"port" json:"port"`
	UserAgent     string       `yaml:"user_agent" json:"user_agent"`
	ReportsDir    string       `yaml:"reports_dir" json:"reports_dir"`
	DefaultMarket string       `yaml:"default_market" json:"default_market"`
	WatchSchedule string       `yaml:"watch_schedule" json:"watch_schedule"`
	Watchlist     []WatchEntry `yaml:"watchlist" json:"watchlist"`
}

// Defaults returns the configuration used when no file and no overrides
// are present.
func Defaults() Config {
	return Config{
		Port:          8080,
		ReportsDir:    "reports",
		DefaultMarket: "CN",
		WatchSchedule: "@every 6h",
	}
}

// Load reads the configuration file at path, falling back to the default
// search locations when path is empty. A missing file yields the defaults.
// Environment variables PORT, FETCH_USER_AGENT, REPORTS_DIR and
// WATCH_SCHEDULE override file values.
func Load(path string) (Config, error) {
	cfg := Defaults()

	resolved := path
	if resolved == "" {
		for _, candidate := range defaultPaths {
			if _, err := os.Stat(candidate); err == nil {
				resolved = candidate
				break
			}
		}
	}

	if resolved != "" {
		data, err := os.ReadFile(resolved)
		switch {
		case err == nil:
			if err := decode(resolved, data, &cfg); err != nil {
				return cfg, err
			}
		case os.IsNotExist(err) && path == "":
			// Search candidate vanished between Stat and ReadFile; defaults apply.
		case os.IsNotExist(err):
			return cfg, fmt.Errorf("config file %s not found", resolved)
		default:
			return cfg, fmt.Errorf("failed to read config %s: %w", resolved, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".hjson":
		if err := utils.ParseHJSONToStruct(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .hjson)", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if v := os.Getenv("FETCH_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("REPORTS_DIR"); v != "" {
		cfg.ReportsDir = v
	}
	if v := os.Getenv("WATCH_SCHEDULE"); v != "" {
		cfg.WatchSchedule = v
	}
}

// Addr renders the listen address for http.ListenAndServe.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
