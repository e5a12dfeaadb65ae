// Package slm21 implements the sLM21 spoken language modeling benchmark.
package slm21

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/RobinHuo/zrc-benchmarks/internal/benchmark"
	"github.com/RobinHuo/zrc-benchmarks/internal/frame"
	"github.com/RobinHuo/zrc-benchmarks/internal/items"
	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
	"github.com/RobinHuo/zrc-benchmarks/internal/validation"
)

// Name is the benchmark's registry name.
const Name = "sLM21"

// DatasetName is the repository dataset holding the gold data.
const DatasetName = "sLM21-dataset"

// Doc describes the benchmark in CLI listings.
const Doc = `Speech-based language modeling benchmark from the ZeroSpeech 2021 challenge.

Scores two tasks over dev and test sets:
  lexical   spot-the-word judgments (sWUGGY), accuracy by pair,
            frequency band and word length
  semantic  pooled-embedding distances against human similarity
            judgments (sSIMI), Spearman correlation per dataset`

// Sets and tasks accepted by the benchmark.
var (
	Sets  = []string{"dev", "test"}
	Tasks = []string{"lexical", "semantic"}
)

func init() {
	benchmark.Register(benchmark.Entry{
		Name:   Name,
		Doc:    Doc,
		Schema: Schema(),
		Load:   Load,
		New: func(reg *repo.Registry, logger *slog.Logger) benchmark.Benchmark {
			return New(reg, logger)
		},
		NewScoreDir: NewScoreDir,
		DefaultParams: func() submission.Params {
			return DefaultParams()
		},
	})
}

// Schema lists the files a submission directory holds.
func Schema() []submission.Slot {
	return []submission.Slot{
		{
			Name: "lexical_dev", Path: filepath.Join("lexical", "dev.txt"),
			Type: items.Txt, Sets: []string{"dev"}, Tasks: []string{"lexical"},
		},
		{
			Name: "lexical_test", Path: filepath.Join("lexical", "test.txt"),
			Type: items.Txt, Sets: []string{"test"}, Tasks: []string{"lexical"},
		},
		{
			Name: "semantic_dev_synthetic", Path: filepath.Join("semantic", "dev", "synthetic"),
			Type: items.NPY, List: true, Sets: []string{"dev"}, Tasks: []string{"semantic"},
		},
		{
			Name: "semantic_dev_librispeech", Path: filepath.Join("semantic", "dev", "librispeech"),
			Type: items.NPY, List: true, Sets: []string{"dev"}, Tasks: []string{"semantic"},
		},
		{
			Name: "semantic_test_synthetic", Path: filepath.Join("semantic", "test", "synthetic"),
			Type: items.NPY, List: true, Sets: []string{"test"}, Tasks: []string{"semantic"},
		},
		{
			Name: "semantic_test_librispeech", Path: filepath.Join("semantic", "test", "librispeech"),
			Type: items.NPY, List: true, Sets: []string{"test"}, Tasks: []string{"semantic"},
		},
	}
}

// Load resolves a submission directory for the benchmark. The gold
// dataset must be installed; its absence is an error, not a
// validation issue.
func Load(reg *repo.Registry, location string, opts submission.Options) (*submission.Submission, error) {
	sub, err := submission.Load(location, Name, Schema(), opts)
	if err != nil {
		return nil, err
	}
	if _, err := goldIndex(reg); err != nil {
		return nil, err
	}

	params, err := LoadParams(sub.ParamsPath())
	if err != nil {
		sub.AddIssues(validation.Tag("params", []validation.Response{
			validation.Errorf("%s", err).WithFile(sub.ParamsPath()),
		})...)
		params = DefaultParams()
	}
	params.Quiet = opts.Quiet
	sub.Params = params

	sub.Validate = func(s *submission.Submission) []validation.Response {
		return validate(reg, s)
	}
	return sub, nil
}

// goldIndex resolves the benchmark dataset's content index.
func goldIndex(reg *repo.Registry) (*repo.ContentIndex, error) {
	ds, err := reg.Dataset(DatasetName)
	if err == nil {
		return ds.ContentIndex()
	}
	if errors.Is(err, repo.ErrNotInstalled) || errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrNoIndex) {
		return nil, fmt.Errorf("gold data unavailable (run: zrc datasets pull %s): %w", DatasetName, err)
	}
	return nil, err
}

// goldTable loads one gold table out of a dataset subset.
func goldTable(ci *repo.ContentIndex, subset, item string) (*frame.Frame, error) {
	ss, err := ci.Subset(subset)
	if err != nil {
		return nil, err
	}
	fi, err := ss.Item(item)
	if err != nil {
		return nil, err
	}
	return frame.Read(fi.File, frame.ReadOptions{Header: true})
}

// validate checks the submitted files against the gold data.
func validate(reg *repo.Registry, sub *submission.Submission) []validation.Response {
	ci, err := goldIndex(reg)
	if err != nil {
		return validation.Tag("dataset", []validation.Response{
			validation.Errorf("%s", err),
		})
	}

	var out []validation.Response
	for _, set := range Sets {
		if !sub.HasSet(set) {
			continue
		}
		if sub.HasTask("lexical") {
			out = append(out, validateLexical(sub, ci, set)...)
		}
		if sub.HasTask("semantic") {
			out = append(out, validateSemantic(sub, ci, set)...)
		}
	}
	return out
}

// validateLexical checks one lexical score file: parsable two-column
// table, filenames matching the gold set.
func validateLexical(sub *submission.Submission, ci *repo.ContentIndex, set string) []validation.Response {
	name := "lexical_" + set
	item, ok := sub.File(name)
	if !ok {
		// already reported as a load issue
		return nil
	}

	cols := []string{"filename", "score"}
	rs, table := validation.CheckTable(item, cols, frame.ReadOptions{Comma: ' ', Names: cols})
	if table != nil {
		gold, err := goldTable(ci, name, "gold")
		if err != nil {
			rs = append(rs, validation.Errorf("%s", err))
		} else {
			rs = append(rs, validation.CompareStringSets(
				table.Strings("filename"), gold.Strings("filename"))...)
		}
	}
	return validation.Tag(name, rs)
}

// validateSemantic checks each submitted embedding directory against
// the gold filenames of its type.
func validateSemantic(sub *submission.Submission, ci *repo.ContentIndex, set string) []validation.Response {
	gold, err := goldTable(ci, "semantic_"+set, "gold")
	if err != nil {
		return validation.Tag("semantic_"+set, []validation.Response{
			validation.Errorf("%s", err),
		})
	}
	types := gold.Strings("type")
	filenames := gold.Strings("filename")

	var out []validation.Response
	for _, typ := range []string{typeLibrispeech, typeSynthetic} {
		name := fmt.Sprintf("semantic_%s_%s", set, typ)
		list, ok := sub.FileList(name)
		if !ok {
			continue
		}
		var expected []string
		for i, t := range types {
			if t == typ {
				expected = append(expected, items.Stem(filenames[i]))
			}
		}
		out = append(out, validation.Tag(name, validation.CompareFileList(list, expected))...)
	}
	return out
}

// Benchmark runs the sLM21 lexical and semantic evaluations.
type Benchmark struct {
	reg    *repo.Registry
	logger *slog.Logger
}

// New builds the benchmark over a dataset registry.
func New(reg *repo.Registry, logger *slog.Logger) *Benchmark {
	return &Benchmark{reg: reg, logger: logger}
}

// Name returns the registry name.
func (b *Benchmark) Name() string { return Name }

// Doc returns the benchmark description.
func (b *Benchmark) Doc() string { return Doc }

// Run scores every selected task and set, writing CSV reports into the
// submission's score directory. A failing subset does not stop the
// others; their errors are joined.
func (b *Benchmark) Run(ctx context.Context, sub *submission.Submission) error {
	ci, err := goldIndex(b.reg)
	if err != nil {
		return err
	}
	outDir, err := sub.ScoreDir()
	if err != nil {
		return err
	}
	params := submissionParams(sub)

	var errs []error
	if sub.HasTask("lexical") {
		lex := &lexicalTask{params: params.Lexical, quiet: params.Quiet, logger: b.logger}
		for _, set := range Sets {
			if !sub.HasSet(set) {
				continue
			}
			if err := lex.evalSubset(set, sub, ci, outDir); err != nil {
				errs = append(errs, fmt.Errorf("lexical %s: %w", set, err))
			}
		}
	}
	if sub.HasTask("semantic") {
		sem := &semanticTask{params: params.Semantic, quiet: params.Quiet, logger: b.logger}
		for _, set := range Sets {
			if !sub.HasSet(set) {
				continue
			}
			if err := sem.evalSubset(ctx, set, sub, ci, outDir); err != nil {
				errs = append(errs, fmt.Errorf("semantic %s: %w", set, err))
			}
		}
	}
	return errors.Join(errs...)
}

// submissionParams returns the submission's loaded params, falling
// back to the defaults.
func submissionParams(sub *submission.Submission) *Params {
	if p, ok := sub.Params.(*Params); ok && p != nil {
		return p
	}
	return DefaultParams()
}
