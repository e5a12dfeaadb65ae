package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	// Verify default values are sensible
	if Default.Repo.Origin == "" {
		t.Error("default repo origin should not be empty")
	}
	if !strings.HasPrefix(Default.Repo.Origin, "https://") {
		t.Errorf("default repo origin = %q, want https URL", Default.Repo.Origin)
	}
	if Default.App.TmpDir == "" {
		t.Error("default tmp dir should not be empty")
	}
}

func TestLoadNoFile(t *testing.T) {
	// Load from an empty directory should return defaults
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	_ = os.Chdir(dir)
	defer func() { _ = os.Chdir(origDir) }()
	t.Setenv("ZRC_APP_DIR", "")
	t.Setenv("ZRC_TMP_DIR", "")
	t.Setenv("ZRC_REPO_ORIGIN", "")
	t.Setenv("ZRC_ENV", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Repo.Origin != Default.Repo.Origin {
		t.Errorf("repo origin = %q, want %q", cfg.Repo.Origin, Default.Repo.Origin)
	}
	if cfg.App.Dir == "" {
		t.Error("app dir should be backfilled, got empty")
	}
	if filepath.Base(cfg.App.Dir) != "zr-data" {
		t.Errorf("app dir = %q, want */zr-data", cfg.App.Dir)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "test.toml")

	content := `
[app]
dir = "/srv/zr-data"
tmp_dir = "/srv/tmp"

[repo]
origin = "https://mirror.example.com/repo.json"
	`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("ZRC_APP_DIR", "")
	t.Setenv("ZRC_TMP_DIR", "")
	t.Setenv("ZRC_REPO_ORIGIN", "")
	t.Setenv("ZRC_ENV", "")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.Dir != "/srv/zr-data" {
		t.Errorf("app dir = %q, want /srv/zr-data", cfg.App.Dir)
	}
	if cfg.App.TmpDir != "/srv/tmp" {
		t.Errorf("tmp dir = %q, want /srv/tmp", cfg.App.TmpDir)
	}
	if cfg.Repo.Origin != "https://mirror.example.com/repo.json" {
		t.Errorf("repo origin = %q, want mirror URL", cfg.Repo.Origin)
	}
	if cfg.DatasetsDir() != "/srv/zr-data/datasets" {
		t.Errorf("DatasetsDir() = %q, want /srv/zr-data/datasets", cfg.DatasetsDir())
	}
	if cfg.CheckpointsDir() != "/srv/zr-data/checkpoints" {
		t.Errorf("CheckpointsDir() = %q, want /srv/zr-data/checkpoints", cfg.CheckpointsDir())
	}
	if cfg.IndexPath() != "/srv/zr-data/repo.json" {
		t.Errorf("IndexPath() = %q, want /srv/zr-data/repo.json", cfg.IndexPath())
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("Load() should error for missing explicit file")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "test.toml")
	content := `
[app]
dir = "/from-file"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("ZRC_ENV", "")
	t.Setenv("ZRC_APP_DIR", "/from-env")
	t.Setenv("ZRC_REPO_ORIGIN", "https://env.example.com/repo.json")
	t.Setenv("ZRC_TMP_DIR", "")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Dir != "/from-env" {
		t.Errorf("app dir = %q, want env override /from-env", cfg.App.Dir)
	}
	if cfg.Repo.Origin != "https://env.example.com/repo.json" {
		t.Errorf("repo origin = %q, want env override", cfg.Repo.Origin)
	}
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "zrc.env")
	if err := os.WriteFile(envPath, []byte("ZRC_APP_DIR=/from-env-file\n"), 0644); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	// godotenv does not override variables that are already set, so
	// ZRC_APP_DIR must be absent from the environment here.
	t.Setenv("ZRC_APP_DIR", "")
	os.Unsetenv("ZRC_APP_DIR")
	t.Setenv("ZRC_TMP_DIR", "")
	t.Setenv("ZRC_REPO_ORIGIN", "")
	t.Setenv("ZRC_ENV", envPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Dir != "/from-env-file" {
		t.Errorf("app dir = %q, want /from-env-file", cfg.App.Dir)
	}

	t.Setenv("ZRC_ENV", filepath.Join(dir, "absent.env"))
	if _, err := Load(""); err == nil {
		t.Error("Load() with missing ZRC_ENV file should error")
	}
}
