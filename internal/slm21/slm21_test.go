package slm21

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/RobinHuo/zrc-benchmarks/internal/benchmark"
	"github.com/RobinHuo/zrc-benchmarks/internal/config"
	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
	"github.com/RobinHuo/zrc-benchmarks/internal/validation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Shared gold and submission fixtures. The lexical gold holds four
// scorable pairs (one over two voices) plus a word with no non-word
// counterpart; the semantic gold holds two librispeech words and two
// synthetic words sharing only voice v1.
const (
	lexicalGoldCSV = `filename,voice,id,frequency,word,length,phones,correct
w1v1,v1,1,10,abduct,6,A-B,1
n1v1,v1,1,,abjct,6,A-J,0
w1v2,v2,1,10,abduct,6,A-B,1
n1v2,v2,1,,abjct,6,A-J,0
w2v1,v1,2,0,zebra,5,Z-B,1
n2v1,v1,2,,zebta,5,Z-T,0
w3v1,v1,3,,qat,3,Q-T,1
n3v1,v1,3,,qet,3,Q-E,0
w5v1,v1,5,18,brimp,3,B-R,1
n5v1,v1,5,,brentp,3,B-P,0
unsub,v1,4,1,ghost,5,G-H,1
`
	lexicalDevTxt = `w1v1 2.0
n1v1 1.0
w1v2 1.0
n1v2 1.0
w2v1 0.1
n2v1 0.9
w3v1 0.5
n3v1 0.2
w5v1 0.3
n5v1 0.7
unsub 0.4
`
	semanticGoldCSV = `type,filename,voice,word
librispeech,c1,A,cat
librispeech,c2,B,cat
librispeech,d1,A,dog
synthetic,s1,v1,sun
synthetic,s2,v2,sun
synthetic,m1,v1,moon
synthetic,m3,v3,moon
`
	semanticPairsCSV = `type,dataset,word_1,word_2,similarity,relatedness
librispeech,ls-d,cat,dog,5,4
synthetic,syn-d,sun,moon,2,1
`
	metaYAML = `benchmark_name: sLM21
model_info:
  model_id: test-model
  system_description: unit fixture
  train_set: none
publication:
  author_label: Doe et al.
  authors: J. Doe
  institution: Test Lab
open_source: true
code_url: https://example.com/code
`
)

// semanticFeatures maps submitted feature files to their single-frame
// vectors, keyed by path under semantic/dev.
var semanticFeatures = map[string][]float64{
	"librispeech/c1.npy": {0, 0},
	"librispeech/c2.npy": {0, 2},
	"librispeech/d1.npy": {3, 0},
	"synthetic/s1.npy":   {0, 0},
	"synthetic/s2.npy":   {10, 10},
	"synthetic/m1.npy":   {4, 3},
	"synthetic/m3.npy":   {99, 99},
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// installDataset lays the benchmark dataset out as an installed
// repository item and returns a registry resolving it.
func installDataset(t *testing.T) *repo.Registry {
	t.Helper()

	cfg := config.Default
	cfg.App.Dir = t.TempDir()

	repoIndex, err := json.Marshal(&repo.Index{Datasets: []repo.Origin{{
		Name:     DatasetName,
		Type:     repo.TypeDataset,
		Origin:   "https://example.com/sLM21-dataset.tar.zst",
		Archive:  repo.ArchiveTarZst,
		Checksum: "",
	}}})
	if err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, cfg.IndexPath(), string(repoIndex))

	root := filepath.Join(cfg.DatasetsDir(), DatasetName)
	mustWriteFile(t, filepath.Join(root, "lexical", "dev", "gold.csv"), lexicalGoldCSV)
	mustWriteFile(t, filepath.Join(root, "semantic", "dev", "gold.csv"), semanticGoldCSV)
	mustWriteFile(t, filepath.Join(root, "semantic", "dev", "pairs.csv"), semanticPairsCSV)

	contentIndex, err := json.Marshal(&repo.ContentIndex{Subsets: map[string]*repo.Subset{
		"lexical_dev": {Items: map[string]*repo.ContentItem{
			"gold": {File: "lexical/dev/gold.csv"},
		}},
		"semantic_dev": {Items: map[string]*repo.ContentItem{
			"gold":  {File: "semantic/dev/gold.csv"},
			"pairs": {File: "semantic/dev/pairs.csv"},
		}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(root, repo.ContentIndexFile), string(contentIndex))

	return repo.NewRegistry(&cfg, nil, testLogger())
}

// writeFullSubmission lays out a complete dev-set submission.
func writeFullSubmission(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "lexical", "dev.txt"), lexicalDevTxt)
	mustWriteFile(t, filepath.Join(dir, submission.MetaFile), metaYAML)
	for rel, values := range semanticFeatures {
		path := filepath.Join(dir, "semantic", "dev", filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		writeNpy(t, path, "<f8", false, "(2,)", values)
	}
	return dir
}

func TestRegisteredEntry(t *testing.T) {
	t.Parallel()

	entry, err := benchmark.Lookup(Name)
	if err != nil {
		t.Fatalf("Lookup(%q) error = %v", Name, err)
	}
	if entry.Doc == "" {
		t.Error("entry has no doc")
	}
	if len(entry.Schema) != 6 {
		t.Errorf("entry schema has %d slots, want 6", len(entry.Schema))
	}
	if entry.Load == nil || entry.New == nil || entry.NewScoreDir == nil || entry.DefaultParams == nil {
		t.Error("entry has nil constructors")
	}
}

func TestSchemaTags(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, slot := range Schema() {
		if seen[slot.Name] {
			t.Errorf("duplicate slot name %q", slot.Name)
		}
		seen[slot.Name] = true
		if len(slot.Sets) != 1 || len(slot.Tasks) != 1 {
			t.Errorf("slot %q tags = (%v, %v), want one set and one task", slot.Name, slot.Sets, slot.Tasks)
		}
		if strings.HasPrefix(slot.Name, "semantic") != slot.List {
			t.Errorf("slot %q list = %v, want file lists for semantic slots only", slot.Name, slot.List)
		}
	}
	for _, name := range []string{
		"lexical_dev", "lexical_test",
		"semantic_dev_synthetic", "semantic_dev_librispeech",
		"semantic_test_synthetic", "semantic_test_librispeech",
	} {
		if !seen[name] {
			t.Errorf("schema is missing slot %q", name)
		}
	}
}

func TestLoadFailsWithoutDataset(t *testing.T) {
	t.Parallel()

	cfg := config.Default
	cfg.App.Dir = t.TempDir()
	reg := repo.NewRegistry(&cfg, nil, testLogger())

	_, err := Load(reg, writeFullSubmission(t), submission.Options{Sets: []string{"dev"}})
	if err == nil || !strings.Contains(err.Error(), "gold data unavailable") {
		t.Fatalf("Load() error = %v, want gold data unavailable", err)
	}
	if !errors.Is(err, repo.ErrNoIndex) {
		t.Errorf("Load() error = %v, want ErrNoIndex in the chain", err)
	}
}

func TestLoadValidRun(t *testing.T) {
	t.Parallel()

	reg := installDataset(t)
	outDir := t.TempDir()
	sub, err := Load(reg, writeFullSubmission(t), submission.Options{
		Sets: []string{"dev"}, ScoreRoot: outDir, Quiet: true,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !sub.Valid() {
		t.Fatalf("Valid() = false, responses: %v", sub.ValidationOutput())
	}

	b := New(reg, testLogger())
	if err := b.Run(context.Background(), sub); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, name := range []string{
		"score_lexical_dev_by_pair.csv",
		"score_lexical_dev_by_frequency.csv",
		"score_lexical_dev_by_length.csv",
		"score_semantic_dev_pairs.csv",
		"score_semantic_dev_correlation.csv",
	} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("report %s missing: %v", name, err)
		}
	}

	sd := NewScoreDir(outDir, sub.Meta)
	entry, err := sd.BuildLeaderboard()
	if err != nil {
		t.Fatalf("BuildLeaderboard() error = %v", err)
	}
	scores, ok := entry.Scores.(Scores)
	if !ok {
		t.Fatalf("entry scores are %T, want Scores", entry.Scores)
	}
	if scores.Lexical.Dev == nil || !near(*scores.Lexical.Dev, 0.4375) {
		t.Errorf("lexical dev score = %v, want 0.4375", scores.Lexical.Dev)
	}
	if scores.Lexical.Test != nil {
		t.Errorf("lexical test score = %v, want nil for an unscored set", *scores.Lexical.Test)
	}
	if len(scores.Semantic) != 2 {
		t.Fatalf("semantic scores = %d rows, want 2", len(scores.Semantic))
	}
	for _, row := range scores.Semantic {
		if row.Set != "dev" {
			t.Errorf("semantic row set = %q, want dev", row.Set)
		}
		// single-pair groups have no defined correlation
		if row.Correlation != nil {
			t.Errorf("semantic row %s/%s correlation = %v, want nil", row.Type, row.Dataset, *row.Correlation)
		}
	}

	if entry.Benchmark != Name {
		t.Errorf("entry benchmark = %q, want %q", entry.Benchmark, Name)
	}
	if entry.ModelID != "test-model" {
		t.Errorf("entry model id = %q, want test-model", entry.ModelID)
	}
	if entry.Publication.Institution != "Test Lab" {
		t.Errorf("entry institution = %q, want Test Lab", entry.Publication.Institution)
	}
	if !entry.Publication.OpenScience || entry.Publication.Code != "https://example.com/code" {
		t.Errorf("entry publication = %+v, want open science with code url", entry.Publication)
	}
	if !strings.HasPrefix(entry.ContentHash, "blake3:") {
		t.Errorf("content hash = %q, want blake3 prefix", entry.ContentHash)
	}
	if _, err := json.Marshal(entry); err != nil {
		t.Errorf("entry does not marshal: %v", err)
	}
}

func TestValidateCatchesMismatches(t *testing.T) {
	t.Parallel()

	findResponse := func(rs []validation.Response, item, msg string) bool {
		for _, r := range rs {
			if r.Item == item && strings.Contains(r.Msg, msg) {
				return true
			}
		}
		return false
	}

	t.Run("extra_lexical_row", func(t *testing.T) {
		t.Parallel()
		reg := installDataset(t)
		subDir := writeFullSubmission(t)
		mustWriteFile(t, filepath.Join(subDir, "lexical", "dev.txt"), lexicalDevTxt+"phantom 0.5\n")

		sub, err := Load(reg, subDir, submission.Options{Sets: []string{"dev"}, Quiet: true})
		if err != nil {
			t.Fatal(err)
		}
		if sub.Valid() {
			t.Fatal("Valid() = true, want false for an unexpected filename")
		}
		if !findResponse(sub.ValidationOutput(), "lexical_dev", "more files found") {
			t.Errorf("responses = %v, want more files found on lexical_dev", sub.ValidationOutput())
		}
	})

	t.Run("missing_semantic_file", func(t *testing.T) {
		t.Parallel()
		reg := installDataset(t)
		subDir := writeFullSubmission(t)
		if err := os.Remove(filepath.Join(subDir, "semantic", "dev", "synthetic", "s1.npy")); err != nil {
			t.Fatal(err)
		}

		sub, err := Load(reg, subDir, submission.Options{Sets: []string{"dev"}, Quiet: true})
		if err != nil {
			t.Fatal(err)
		}
		if sub.Valid() {
			t.Fatal("Valid() = true, want false for a missing feature file")
		}
		if !findResponse(sub.ValidationOutput(), "semantic_dev_synthetic", "missing files") {
			t.Errorf("responses = %v, want missing files on semantic_dev_synthetic", sub.ValidationOutput())
		}
	})
}

func TestLoadBadParamsFile(t *testing.T) {
	t.Parallel()

	reg := installDataset(t)
	subDir := writeFullSubmission(t)
	mustWriteFile(t, filepath.Join(subDir, submission.ParamsFile), "semantic:\n  metric: warp\n")

	sub, err := Load(reg, subDir, submission.Options{Sets: []string{"dev"}, Quiet: true})
	if err != nil {
		t.Fatalf("Load() error = %v, want params failure to be a validation issue", err)
	}
	if sub.Valid() {
		t.Fatal("Valid() = true, want false for an unparsable params file")
	}
	found := false
	for _, r := range sub.ValidationOutput() {
		if r.Item == "params" && r.IsError() {
			found = true
		}
	}
	if !found {
		t.Errorf("responses = %v, want a params error", sub.ValidationOutput())
	}
	want := DefaultParams()
	want.Quiet = true
	if p := submissionParams(sub); *p != *want {
		t.Errorf("params = %+v, want defaults after a parse failure", p)
	}
}
