// Package benchmark defines the benchmark contract and the registry of
// runnable benchmarks.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
)

// ErrNotFound reports a benchmark name with no registered entry.
var ErrNotFound = errors.New("benchmark not found")

// Benchmark evaluates a loaded submission and writes score reports
// into its score directory.
type Benchmark interface {
	Name() string
	Doc() string
	Run(ctx context.Context, sub *submission.Submission) error
}

// Entry describes one registered benchmark: how to load a submission
// for it, how to construct the runnable benchmark, and how to open a
// finished score directory.
type Entry struct {
	Name string
	Doc  string

	// Schema lists the files and directories a submission holds.
	Schema []submission.Slot

	// Load resolves a submission directory against the benchmark's
	// schema. The registry supplies the gold data the validator
	// compares against.
	Load func(reg *repo.Registry, location string, opts submission.Options) (*submission.Submission, error)

	// New builds the runnable benchmark over the given dataset
	// registry.
	New func(reg *repo.Registry, logger *slog.Logger) Benchmark

	// NewScoreDir opens a directory of written score reports for
	// leaderboard aggregation.
	NewScoreDir func(location string, meta *submission.Meta) ScoreDir

	// DefaultParams returns a fresh default parameter record.
	DefaultParams func() submission.Params
}

var registry = make(map[string]Entry)

// Register adds a benchmark entry. Entries register themselves from
// their package init; duplicate names are a programming error.
func Register(e Entry) {
	if e.Name == "" {
		panic("benchmark: registering entry without a name")
	}
	if _, dup := registry[e.Name]; dup {
		panic("benchmark: duplicate registration of " + e.Name)
	}
	registry[e.Name] = e
}

// Lookup returns the entry registered under name.
func Lookup(name string) (Entry, error) {
	e, ok := registry[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// Names lists all registered benchmark names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
