package config

import (
	"os"
	"path/filepath"
)

// Paths contains the standard XDG paths for inkwell data.
type Paths struct {
	Data   string // ~/.local/share/inkwell
	Config string // ~/.config/inkwell
}

// GetPaths returns the standard paths, honoring XDG overrides and
// INKWELL_DATA for tests and containers.
func GetPaths() *Paths {
	data := os.Getenv("INKWELL_DATA")
	if data == "" {
		data = filepath.Join(envOr("XDG_DATA_HOME", filepath.Join(os.Getenv("HOME"), ".local", "share")), "inkwell")
	}
	return &Paths{
		Data:   data,
		Config: filepath.Join(envOr("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), "inkwell"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath returns the persistence root.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
