// Package config loads application configuration from JSONC files and
// environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/inkwell-ai/inkwell/pkg/types"
)

// Load builds the configuration from defaults, then (in priority order):
// the global config file (~/.config/inkwell/inkwell.jsonc), a project-local
// inkwell.jsonc in directory, the INKWELL_CONFIG file override, and finally
// environment variables.
func Load(directory string) (*types.Config, error) {
	cfg := types.DefaultConfig()

	candidates := []string{
		filepath.Join(GetPaths().Config, "inkwell.json"),
		filepath.Join(GetPaths().Config, "inkwell.jsonc"),
	}
	if directory != "" {
		candidates = append(candidates,
			filepath.Join(directory, "inkwell.json"),
			filepath.Join(directory, "inkwell.jsonc"),
		)
	}
	if p := os.Getenv("INKWELL_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}

	for _, path := range candidates {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadFile merges one config file into cfg. A missing file is skipped; a
// malformed one is an error.
func loadFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	data = jsonc.ToJSON(data)
	data = interpolateEnv(data)

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolateEnv replaces {env:VAR} placeholders with environment values.
func interpolateEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyEnvOverrides applies INKWELL_* environment variables, which win over
// every file source.
func applyEnvOverrides(cfg *types.Config) {
	if v := os.Getenv("INKWELL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INKWELL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("INKWELL_LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = v == "1" || v == "true"
	}
	if v := os.Getenv("INKWELL_DAILY_RESET_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h < 24 {
			cfg.Usage.DailyResetHourUTC = h
		}
	}
}
