package submission

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RobinHuo/zrc-benchmarks/internal/items"
	"github.com/RobinHuo/zrc-benchmarks/internal/validation"
)

var testSchema = []Slot{
	{Name: "lexical_dev", Path: "lexical/dev.txt", Type: items.Txt, Sets: []string{"dev"}, Tasks: []string{"lexical"}},
	{Name: "lexical_test", Path: "lexical/test.txt", Type: items.Txt, Sets: []string{"test"}, Tasks: []string{"lexical"}},
	{Name: "semantic_dev_synthetic", Path: "semantic/dev/synthetic", Type: items.NPY, List: true,
		Sets: []string{"dev"}, Tasks: []string{"semantic"}},
}

func scaffold(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"lexical", "semantic/dev/synthetic"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for path, content := range map[string]string{
		"lexical/dev.txt":                    "file_1 0.5\n",
		"lexical/test.txt":                   "file_2 0.1\n",
		"semantic/dev/synthetic/aback.npy":   "x",
		"semantic/dev/synthetic/abandon.npy": "x",
	} {
		if err := os.WriteFile(filepath.Join(dir, path), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadResolvesSlots(t *testing.T) {
	t.Parallel()

	dir := scaffold(t)
	s, err := Load(dir, "sLM21", testSchema, Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, ok := s.File("lexical_dev"); !ok {
		t.Error("lexical_dev not resolved")
	}
	if _, ok := s.File("lexical_test"); !ok {
		t.Error("lexical_test not resolved")
	}
	list, ok := s.FileList("semantic_dev_synthetic")
	if !ok {
		t.Fatal("semantic_dev_synthetic not resolved")
	}
	if got := len(list.Files); got != 2 {
		t.Errorf("semantic list has %d files, want 2", got)
	}
}

func TestLoadFiltersBySetAndTask(t *testing.T) {
	t.Parallel()

	dir := scaffold(t)
	s, err := Load(dir, "sLM21", testSchema, Options{Sets: []string{"dev"}, Tasks: []string{"lexical"}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, ok := s.File("lexical_dev"); !ok {
		t.Error("lexical_dev should be active for dev/lexical")
	}
	if _, ok := s.File("lexical_test"); ok {
		t.Error("lexical_test should be skipped when sets=[dev]")
	}
	if _, ok := s.FileList("semantic_dev_synthetic"); ok {
		t.Error("semantic slot should be skipped when tasks=[lexical]")
	}

	if !s.HasSet("dev") || s.HasSet("test") {
		t.Error("HasSet() wrong for sets=[dev]")
	}
	if !s.HasTask("lexical") || s.HasTask("semantic") {
		t.Error("HasTask() wrong for tasks=[lexical]")
	}
}

func TestLoadMissingItemBecomesIssue(t *testing.T) {
	t.Parallel()

	dir := scaffold(t)
	if err := os.Remove(filepath.Join(dir, "lexical", "dev.txt")); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir, "sLM21", testSchema, Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Valid() {
		t.Error("Valid() = true with a missing item")
	}

	errs := validation.Errors(s.ValidationOutput())
	found := false
	for _, r := range errs {
		if r.Item == "lexical_dev" && strings.Contains(r.Msg, "missing from submission") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing lexical_dev issue not reported, got %v", errs)
	}
}

func TestLoadRejectsMissingDirectory(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent"), "sLM21", testSchema, Options{}); err == nil {
		t.Error("Load() on missing directory: want error, got nil")
	}
}

func TestValidRunsOnceAndCaches(t *testing.T) {
	t.Parallel()

	dir := scaffold(t)
	calls := 0
	s, err := Load(dir, "sLM21", testSchema, Options{})
	if err != nil {
		t.Fatal(err)
	}
	s.Validate = func(*Submission) []validation.Response {
		calls++
		return []validation.Response{validation.OK("checked")}
	}

	for i := 0; i < 3; i++ {
		if !s.Valid() {
			t.Fatal("Valid() = false, want true")
		}
	}
	_ = s.ValidationOutput()
	if calls != 1 {
		t.Errorf("validator ran %d times, want 1", calls)
	}
}

func TestScoreDirIdempotent(t *testing.T) {
	t.Parallel()

	dir := scaffold(t)
	s, err := Load(dir, "sLM21", testSchema, Options{})
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.ScoreDir()
	if err != nil {
		t.Fatalf("ScoreDir() error = %v", err)
	}
	if first != filepath.Join(dir, "scores") {
		t.Errorf("ScoreDir() = %q, want %q", first, filepath.Join(dir, "scores"))
	}

	second, err := s.ScoreDir()
	if err != nil {
		t.Fatalf("ScoreDir() second call error = %v", err)
	}
	if first != second {
		t.Errorf("ScoreDir() not stable: %q then %q", first, second)
	}

	info, err := os.Stat(first)
	if err != nil || !info.IsDir() {
		t.Errorf("score dir not created: %v", err)
	}
}

func TestScoreDirOverride(t *testing.T) {
	t.Parallel()

	dir := scaffold(t)
	out := filepath.Join(t.TempDir(), "deep", "scores")
	s, err := Load(dir, "sLM21", testSchema, Options{ScoreRoot: out})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.ScoreDir()
	if err != nil {
		t.Fatalf("ScoreDir() error = %v", err)
	}
	if got != out {
		t.Errorf("ScoreDir() = %q, want override %q", got, out)
	}
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		t.Errorf("override dir with parents not created: %v", err)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meta := &Meta{
		BenchmarkName: "sLM21",
		ModelInfo: ModelInfo{
			SystemDescription: "CPC + kmeans + LM",
			TrainSet:          "librispeech-960",
		},
		Publication: Publication{
			AuthorLabel: "Doe et al.",
			Authors:     "J. Doe, A. Smith",
			Institution: "Example University",
		},
		OpenSource: true,
	}
	if err := meta.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	back, err := LoadMeta(dir)
	if err != nil {
		t.Fatalf("LoadMeta() error = %v", err)
	}
	if back == nil {
		t.Fatal("LoadMeta() = nil after Save")
	}
	if back.BenchmarkName != "sLM21" || back.Publication.Institution != "Example University" {
		t.Errorf("round trip mismatch: %+v", back)
	}

	name, err := BenchmarkFromDir(dir)
	if err != nil || name != "sLM21" {
		t.Errorf("BenchmarkFromDir() = (%q, %v), want sLM21", name, err)
	}
}

func TestLoadMetaAbsentAndBroken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meta, err := LoadMeta(dir)
	if err != nil || meta != nil {
		t.Errorf("LoadMeta() on absent file = (%v, %v), want (nil, nil)", meta, err)
	}
	if _, err := BenchmarkFromDir(dir); err == nil {
		t.Error("BenchmarkFromDir() on absent meta: want error")
	}

	if err := os.WriteFile(filepath.Join(dir, MetaFile), []byte("benchmark_name: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMeta(dir); err == nil {
		t.Error("LoadMeta() on broken yaml: want error")
	}
}
