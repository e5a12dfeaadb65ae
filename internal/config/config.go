// Package config provides configuration loading and management for zrc.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all configuration for zrc.
type Config struct {
	App  AppConfig  `toml:"app"`
	Repo RepoConfig `toml:"repo"`
}

// AppConfig contains local storage settings.
type AppConfig struct {
	Dir    string `toml:"dir"`     // Root data directory (default: ~/zr-data)
	TmpDir string `toml:"tmp_dir"` // Scratch space for downloads and archives
}

// RepoConfig contains remote repository settings.
type RepoConfig struct {
	Origin string `toml:"origin"` // URL of the repository index
}

// Default configuration values.
var Default = Config{
	App: AppConfig{
		TmpDir: os.TempDir(),
	},
	Repo: RepoConfig{
		Origin: "https://download.zerospeech.com/repo.json",
	},
}

// configPaths returns the list of paths to search for config files.
func configPaths() []string {
	paths := []string{"./zrc.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".zrc.toml"))
		paths = append(paths, filepath.Join(home, ".config", "zrc", "config.toml"))
	}

	return paths
}

// Load loads configuration from a file or discovers it automatically.
// If configFile is empty, it searches standard locations. Environment
// variables override file values: an env file named by ZRC_ENV is read
// first, then ZRC_APP_DIR, ZRC_TMP_DIR and ZRC_REPO_ORIGIN apply.
// Returns default config if no file is found.
func Load(configFile string) (*Config, error) {
	cfg := Default // Start with defaults

	var path string
	if configFile != "" {
		path = configFile
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	} else {
		for _, p := range configPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if envFile := os.Getenv("ZRC_ENV"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}
	if v := os.Getenv("ZRC_APP_DIR"); v != "" {
		cfg.App.Dir = v
	}
	if v := os.Getenv("ZRC_TMP_DIR"); v != "" {
		cfg.App.TmpDir = v
	}
	if v := os.Getenv("ZRC_REPO_ORIGIN"); v != "" {
		cfg.Repo.Origin = v
	}

	// Ensure critical fields aren't zeroed out by partial config
	if cfg.App.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.App.Dir = filepath.Join(home, "zr-data")
		} else {
			cfg.App.Dir = "zr-data"
		}
	}
	if cfg.App.TmpDir == "" {
		cfg.App.TmpDir = Default.App.TmpDir
	}
	if cfg.Repo.Origin == "" {
		cfg.Repo.Origin = Default.Repo.Origin
	}

	return &cfg, nil
}

// DatasetsDir returns the local directory holding installed datasets.
func (c *Config) DatasetsDir() string {
	return filepath.Join(c.App.Dir, "datasets")
}

// CheckpointsDir returns the local directory holding installed checkpoints.
func (c *Config) CheckpointsDir() string {
	return filepath.Join(c.App.Dir, "checkpoints")
}

// IndexPath returns the location of the cached repository index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.App.Dir, "repo.json")
}

// MkTemp creates a fresh scratch directory under the configured tmp dir.
// The caller removes it when done.
func (c *Config) MkTemp() (string, error) {
	if err := os.MkdirAll(c.App.TmpDir, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(c.App.TmpDir, "zrc")
}
