package submission

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Meta is the meta.yaml sidecar describing a submission's provenance.
type Meta struct {
	BenchmarkName string      `yaml:"benchmark_name"`
	ModelInfo     ModelInfo   `yaml:"model_info"`
	Publication   Publication `yaml:"publication"`
	OpenSource    bool        `yaml:"open_source"`
	CodeURL       string      `yaml:"code_url,omitempty"`
}

// ModelInfo describes the system that produced the submission.
type ModelInfo struct {
	ModelID           string `yaml:"model_id,omitempty"`
	SystemDescription string `yaml:"system_description"`
	TrainSet          string `yaml:"train_set"`
	GPUBudget         string `yaml:"gpu_budget,omitempty"`
}

// Publication holds authorship details for leaderboard display.
type Publication struct {
	AuthorLabel string `yaml:"author_label"`
	Authors     string `yaml:"authors"`
	PaperTitle  string `yaml:"paper_title,omitempty"`
	PaperURL    string `yaml:"paper_url,omitempty"`
	Institution string `yaml:"institution"`
	Team        string `yaml:"team,omitempty"`
}

// LoadMeta reads the meta sidecar of a submission directory. A missing
// file is not an error and yields a nil Meta.
func LoadMeta(dir string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading meta: %w", err)
	}

	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta: %w", err)
	}
	return &meta, nil
}

// Save writes the meta sidecar into a submission directory.
func (m *Meta) Save(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding meta: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, MetaFile), data, 0o644)
}

// BenchmarkFromDir reads only the benchmark name out of a submission's
// meta sidecar.
func BenchmarkFromDir(dir string) (string, error) {
	meta, err := LoadMeta(dir)
	if err != nil {
		return "", err
	}
	if meta == nil || meta.BenchmarkName == "" {
		return "", fmt.Errorf("no benchmark name in %s", filepath.Join(dir, MetaFile))
	}
	return meta.BenchmarkName, nil
}
