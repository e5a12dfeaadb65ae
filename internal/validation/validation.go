// Package validation implements the submission checking primitives.
//
// Checks never abort on first failure: each produces Response values
// describing everything found wrong, so a submitter sees the full state
// of a directory in one pass.
package validation

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/RobinHuo/zrc-benchmarks/internal/frame"
	"github.com/RobinHuo/zrc-benchmarks/internal/items"
)

// Kind classifies a validation response.
type Kind string

const (
	KindOK    Kind = "ok"
	KindError Kind = "error"
)

// Response is the outcome of one validation check.
type Response struct {
	Kind Kind
	Item string   // owning schema slot, filled by the aggregator
	File string   // offending file, when known
	Msg  string
	Data []string // offending entries, nil for OK
}

// OK creates a passing response.
func OK(format string, args ...any) Response {
	return Response{Kind: KindOK, Msg: fmt.Sprintf(format, args...)}
}

// Errorf creates a failing response.
func Errorf(format string, args ...any) Response {
	return Response{Kind: KindError, Msg: fmt.Sprintf(format, args...)}
}

// WithData returns a copy of the response carrying offending entries.
func (r Response) WithData(data []string) Response {
	r.Data = data
	return r
}

// WithFile returns a copy of the response naming the offending file.
func (r Response) WithFile(file string) Response {
	r.File = file
	return r
}

// IsError reports whether the response is a failure.
func (r Response) IsError() bool {
	return r.Kind == KindError
}

// String renders the response on one line, without its data entries.
func (r Response) String() string {
	tag := "OK"
	if r.IsError() {
		tag = "ERROR"
	}
	switch {
	case r.Item != "" && r.File != "":
		return fmt.Sprintf("[%s] %s (%s): %s", tag, r.Item, r.File, r.Msg)
	case r.Item != "":
		return fmt.Sprintf("[%s] %s: %s", tag, r.Item, r.Msg)
	case r.File != "":
		return fmt.Sprintf("[%s] %s: %s", tag, r.File, r.Msg)
	default:
		return fmt.Sprintf("[%s] %s", tag, r.Msg)
	}
}

// Tag sets the owning item on every response.
func Tag(item string, rs []Response) []Response {
	for i := range rs {
		rs[i].Item = item
	}
	return rs
}

// HasErrors reports whether any response is a failure.
func HasErrors(rs []Response) bool {
	for _, r := range rs {
		if r.IsError() {
			return true
		}
	}
	return false
}

// Errors returns only the failing responses.
func Errors(rs []Response) []Response {
	var out []Response
	for _, r := range rs {
		if r.IsError() {
			out = append(out, r)
		}
	}
	return out
}

// CompareStringSets checks a set of given names against an expected set.
// Extra entries on either side are order-insensitive and reported
// together: missing names first, then unexpected ones, each with the
// sorted offending entries attached.
func CompareStringSets(given, expected []string) []Response {
	givenSet := mapset.NewSet(given...)
	expectedSet := mapset.NewSet(expected...)

	if givenSet.Equal(expectedSet) {
		return []Response{OK("expected files found")}
	}

	var resp []Response
	if missing := expectedSet.Difference(givenSet); missing.Cardinality() > 0 {
		resp = append(resp, Errorf("missing files").WithData(sorted(missing)))
	}
	if extra := givenSet.Difference(expectedSet); extra.Cardinality() > 0 {
		resp = append(resp, Errorf("more files found").WithData(sorted(extra)))
	}
	return resp
}

// CompareFileList checks the stems of a file list against expected
// names. Expected entries may be paths or bare stems.
func CompareFileList(item *items.FileListItem, expected []string) []Response {
	stems := make([]string, len(expected))
	for i, e := range expected {
		stems[i] = items.Stem(e)
	}
	return CompareStringSets(item.Stems(), stems)
}

// CheckTable parses a tabular file and checks its columns, in order,
// against the expected names. It returns the parsed table only when
// every check passes; a parse failure is reported as a response, not
// an error.
func CheckTable(item *items.FileItem, columns []string, opts frame.ReadOptions) ([]Response, *frame.Frame) {
	if !item.Type.IsTabular() {
		return []Response{
			Errorf("file type %s cannot be read as a table", item.Type).WithFile(item.File),
		}, nil
	}

	f, err := frame.Read(item.File, opts)
	if err != nil {
		return []Response{Errorf("%s", err).WithFile(item.File)}, nil
	}

	if !equalStrings(f.Columns(), columns) {
		return []Response{
			Errorf("columns are not expected, expected: %v, found: %v", columns, f.Columns()).
				WithFile(item.File),
		}, nil
	}

	return []Response{OK("table is valid")}, f
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
