package slm21

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// LexicalParams selects the lexical sub-reports.
type LexicalParams struct {
	ByPair      bool `yaml:"by_pair"`
	ByFrequency bool `yaml:"by_frequency"`
	ByLength    bool `yaml:"by_length"`
}

// SemanticParams configures the semantic distance computation.
type SemanticParams struct {
	Metric       Metric  `yaml:"metric"`
	Pooling      Pooling `yaml:"pooling"`
	Synthetic    bool    `yaml:"synthetic"`
	Librispeech  bool    `yaml:"librispeech"`
	Correlations bool    `yaml:"correlations"`
	NJobs        int     `yaml:"n_jobs"`
}

// Params is the sLM21 parameter record, persisted as params.yaml in
// the submission directory.
type Params struct {
	Lexical  LexicalParams  `yaml:"lexical"`
	Semantic SemanticParams `yaml:"semantic"`

	// Quiet suppresses progress logging during a run. Set from the
	// load options, never from the file.
	Quiet bool `yaml:"-"`
}

// DefaultParams returns the benchmark's published defaults.
func DefaultParams() *Params {
	return &Params{
		Lexical: LexicalParams{
			ByPair:      true,
			ByFrequency: true,
			ByLength:    true,
		},
		Semantic: SemanticParams{
			Metric:       MetricEuclidean,
			Pooling:      PoolingMean,
			Synthetic:    true,
			Librispeech:  true,
			Correlations: true,
			NJobs:        1,
		},
	}
}

// LoadParams reads a params file over the defaults. Absent fields keep
// their default values; a missing file yields the defaults unchanged.
func LoadParams(path string) (*Params, error) {
	params := DefaultParams()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return params, nil
		}
		return nil, fmt.Errorf("reading params: %w", err)
	}
	if err := yaml.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("parsing params: %w", err)
	}
	if err := params.check(); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Params) check() error {
	if _, err := ParseMetric(string(p.Semantic.Metric)); err != nil {
		return err
	}
	if _, err := ParsePooling(string(p.Semantic.Pooling)); err != nil {
		return err
	}
	return nil
}

// Export writes the serializable parameters as YAML.
func (p *Params) Export(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing params: %w", err)
	}
	return nil
}
