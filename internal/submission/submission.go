// Package submission models a benchmark submission directory.
package submission

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RobinHuo/zrc-benchmarks/internal/items"
	"github.com/RobinHuo/zrc-benchmarks/internal/validation"
)

// Standard sidecar file names inside a submission directory.
const (
	ParamsFile = "params.yaml"
	MetaFile   = "meta.yaml"
)

// Slot describes one entry of a benchmark's submission schema.
type Slot struct {
	Name  string
	Path  string         // relative to the submission root
	Type  items.FileType
	List  bool           // Path is a directory of Type files
	Sets  []string       // subset tags; empty means all
	Tasks []string       // task tags; empty means all
}

// Params is the benchmark-specific parameter record of a submission.
type Params interface {
	// Export writes the serializable parameters to a YAML file.
	Export(path string) error
}

// Options selects which parts of a submission to load.
type Options struct {
	Sets      []string // subsets to evaluate; empty means all
	Tasks     []string // tasks to evaluate; empty means all
	ScoreRoot string   // overrides the default score directory
	Quiet     bool     // suppress per-subset progress logging
}

// Submission is a loaded submission directory. Items are resolved
// eagerly; validation runs lazily on first use and is cached.
type Submission struct {
	Location  string
	Benchmark string
	Sets      []string
	Tasks     []string
	Files     map[string]*items.FileItem
	FileLists map[string]*items.FileListItem
	Meta      *Meta
	Params    Params

	// Validate runs the benchmark-specific checks. Set by the
	// benchmark loader before the submission is used.
	Validate func(s *Submission) []validation.Response

	scoreRoot    string
	loadIssues   []validation.Response
	validateOnce sync.Once
	output       []validation.Response
}

// Load resolves a submission directory against a schema. Slots outside
// the selected sets and tasks are skipped; missing items become
// validation issues rather than errors. Only a missing or unreadable
// submission directory fails.
func Load(location, benchmark string, schema []Slot, opts Options) (*Submission, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("submission directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("submission directory: %s is not a directory", location)
	}

	s := &Submission{
		Location:  location,
		Benchmark: benchmark,
		Sets:      opts.Sets,
		Tasks:     opts.Tasks,
		Files:     make(map[string]*items.FileItem),
		FileLists: make(map[string]*items.FileListItem),
		scoreRoot: opts.ScoreRoot,
	}

	for _, slot := range schema {
		if !tagActive(slot.Sets, opts.Sets) || !tagActive(slot.Tasks, opts.Tasks) {
			continue
		}
		path := filepath.Join(location, slot.Path)
		if slot.List {
			item, err := items.NewFileListItem(path, slot.Type)
			if err != nil {
				s.loadIssues = append(s.loadIssues,
					validation.Tag(slot.Name, []validation.Response{
						validation.Errorf("missing from submission: %s", slot.Path),
					})...)
				continue
			}
			s.FileLists[slot.Name] = item
		} else {
			item, err := items.NewFileItem(path, slot.Type)
			if err != nil {
				s.loadIssues = append(s.loadIssues,
					validation.Tag(slot.Name, []validation.Response{
						validation.Errorf("missing from submission: %s", slot.Path),
					})...)
				continue
			}
			s.Files[slot.Name] = item
		}
	}

	meta, err := LoadMeta(location)
	if err != nil {
		s.loadIssues = append(s.loadIssues,
			validation.Tag("meta", []validation.Response{
				validation.Errorf("%s", err).WithFile(filepath.Join(location, MetaFile)),
			})...)
	} else {
		s.Meta = meta
	}

	return s, nil
}

// tagActive reports whether a slot tagged with tags is active for the
// given selection. Empty tags or an empty selection match everything.
func tagActive(tags, selected []string) bool {
	if len(tags) == 0 || len(selected) == 0 {
		return true
	}
	for _, tag := range tags {
		for _, sel := range selected {
			if tag == sel {
				return true
			}
		}
	}
	return false
}

// AddIssues records extra load-time validation issues. Must be called
// before the first Valid or ValidationOutput call.
func (s *Submission) AddIssues(rs ...validation.Response) {
	s.loadIssues = append(s.loadIssues, rs...)
}

// File returns the resolved single-file item for a slot.
func (s *Submission) File(name string) (*items.FileItem, bool) {
	item, ok := s.Files[name]
	return item, ok
}

// FileList returns the resolved file-list item for a slot.
func (s *Submission) FileList(name string) (*items.FileListItem, bool) {
	item, ok := s.FileLists[name]
	return item, ok
}

// HasSet reports whether a subset is selected for evaluation.
func (s *Submission) HasSet(name string) bool {
	return tagActive([]string{name}, s.Sets)
}

// HasTask reports whether a task is selected for evaluation.
func (s *Submission) HasTask(name string) bool {
	return tagActive([]string{name}, s.Tasks)
}

// Valid reports whether the submission passes validation. The checks
// run once; repeated calls return the cached verdict.
func (s *Submission) Valid() bool {
	s.validateOnce.Do(func() {
		s.output = append(s.output, s.loadIssues...)
		if s.Validate != nil {
			s.output = append(s.output, s.Validate(s)...)
		}
	})
	return !validation.HasErrors(s.output)
}

// ValidationOutput returns all responses produced by validation,
// running it first if needed.
func (s *Submission) ValidationOutput() []validation.Response {
	s.Valid()
	return s.output
}

// ScoreDir returns the directory score reports are written to,
// creating it and any parents if needed. Calling it repeatedly is
// harmless.
func (s *Submission) ScoreDir() (string, error) {
	dir := s.scoreRoot
	if dir == "" {
		dir = filepath.Join(s.Location, "scores")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating score directory: %w", err)
	}
	return dir, nil
}

// ParamsPath returns the location of the params sidecar file.
func (s *Submission) ParamsPath() string {
	return filepath.Join(s.Location, ParamsFile)
}
