package slm21

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RobinHuo/zrc-benchmarks/internal/benchmark"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
)

// LexicalScores are the mean spot-the-word accuracies per set.
type LexicalScores struct {
	Dev  *float64 `json:"dev,omitempty"`
	Test *float64 `json:"test,omitempty"`
}

// SemanticScore is one group's correlation between machine distances
// and human judgments. Correlation is null when it could not be
// computed.
type SemanticScore struct {
	Set         string   `json:"set"`
	Type        string   `json:"type"`
	Dataset     string   `json:"dataset"`
	Correlation *float64 `json:"correlation"`
}

// Scores is the leaderboard score block built from the written
// reports.
type Scores struct {
	Lexical  LexicalScores   `json:"lexical"`
	Semantic []SemanticScore `json:"semantic,omitempty"`
}

// ScoreDir aggregates a directory of written sLM21 reports.
type ScoreDir struct {
	benchmark.Dir
}

// NewScoreDir binds a score directory to its submission meta.
func NewScoreDir(location string, meta *submission.Meta) benchmark.ScoreDir {
	return &ScoreDir{Dir: benchmark.NewDir(location, meta)}
}

// BuildLeaderboard reads the reports back and assembles the
// leaderboard entry. Reports that were not written are skipped.
func (d *ScoreDir) BuildLeaderboard() (*benchmark.LeaderboardEntry, error) {
	var scores Scores
	for _, set := range Sets {
		mean, err := d.lexicalMean(set)
		if err != nil {
			return nil, err
		}
		switch set {
		case "dev":
			scores.Lexical.Dev = mean
		case "test":
			scores.Lexical.Test = mean
		}

		rows, err := d.semanticRows(set)
		if err != nil {
			return nil, err
		}
		scores.Semantic = append(scores.Semantic, rows...)
	}
	return d.NewEntry(Name, scores)
}

// lexicalMean averages the per-pair scores of one set, nil when the
// report is absent or empty.
func (d *ScoreDir) lexicalMean(set string) (*float64, error) {
	name := fmt.Sprintf("score_lexical_%s_by_pair.csv", set)
	if !d.HasScore(name) {
		return nil, nil
	}
	report, err := d.ReadScore(name)
	if err != nil {
		return nil, err
	}
	values := report.Floats("score")
	if len(values) == 0 {
		return nil, nil
	}
	mean := stat.Mean(values, nil)
	if math.IsNaN(mean) {
		return nil, nil
	}
	return &mean, nil
}

// semanticRows collects one set's correlation rows.
func (d *ScoreDir) semanticRows(set string) ([]SemanticScore, error) {
	name := fmt.Sprintf("score_semantic_%s_correlation.csv", set)
	if !d.HasScore(name) {
		return nil, nil
	}
	report, err := d.ReadScore(name)
	if err != nil {
		return nil, err
	}
	types := report.Strings("type")
	datasets := report.Strings("dataset")
	correlations := report.Floats("correlation")

	rows := make([]SemanticScore, 0, report.Len())
	for i := range types {
		row := SemanticScore{Set: set, Type: types[i], Dataset: datasets[i]}
		if !math.IsNaN(correlations[i]) {
			row.Correlation = &correlations[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
