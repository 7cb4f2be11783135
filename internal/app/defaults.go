package app

import (
	"fmt"
	"os"
	"path/filepath"

	"baucam/internal/config"
)

// Environment variables overriding the default locations.
const (
	EnvConfigPath = "BAUCAM_CONFIG_PATH"
	EnvHome       = "BAUCAM_HOME"
)

// Defaults are the locations baucam uses before any config is read.
type Defaults struct {
	ConfigPath string // TOML config file
	BaseDir    string // root of the database, images, logs and filesystem remote
}

// LoadDefaults resolves Defaults from the environment. Unset variables fall
// back to ~/.config/baucam.toml and ~/.local/share/baucam.
func LoadDefaults() (Defaults, error) {
	d := Defaults{
		ConfigPath: os.Getenv(EnvConfigPath),
		BaseDir:    os.Getenv(EnvHome),
	}
	if d.ConfigPath != "" && d.BaseDir != "" {
		return d, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if d.ConfigPath == "" {
		d.ConfigPath = filepath.Join(home, ".config", "baucam.toml")
	}
	if d.BaseDir == "" {
		d.BaseDir = filepath.Join(home, ".local", "share", "baucam")
	}
	return d, nil
}

// Config returns the built-in configuration rooted at BaseDir.
func (d Defaults) Config() *config.Config {
	return config.NewConfig(d.BaseDir)
}
