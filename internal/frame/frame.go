// Package frame implements small ordered-column tables for gold files and score reports.
package frame

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Frame is an in-memory table with named, ordered columns.
// Cells hold string, int64, float64 or nil (missing value).
type Frame struct {
	cols  []string
	index map[string]int
	rows  [][]any
}

// New creates an empty frame with the given column names.
func New(cols ...string) *Frame {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	return &Frame{cols: cols, index: index}
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return f.cols
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Append adds a row. It panics if the cell count does not match the
// column count.
func (f *Frame) Append(cells ...any) {
	if len(cells) != len(f.cols) {
		panic(fmt.Sprintf("frame: appending %d cells to %d columns", len(cells), len(f.cols)))
	}
	f.rows = append(f.rows, cells)
}

// Cell returns the value at row i in the named column, or nil if the
// column does not exist.
func (f *Frame) Cell(i int, name string) any {
	j, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.rows[i][j]
}

// Column returns all values of the named column.
func (f *Frame) Column(name string) ([]any, bool) {
	j, ok := f.index[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[j]
	}
	return out, true
}

// Strings returns the named column with every cell formatted as a string.
// Missing cells become the empty string.
func (f *Frame) Strings(name string) []string {
	col, ok := f.Column(name)
	if !ok {
		return nil
	}
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = formatCell(v, -1)
	}
	return out
}

// Floats returns the named column as float64 values. Missing and
// non-numeric cells become NaN.
func (f *Frame) Floats(name string) []float64 {
	col, ok := f.Column(name)
	if !ok {
		return nil
	}
	out := make([]float64, len(col))
	for i, v := range col {
		switch x := v.(type) {
		case float64:
			out[i] = x
		case int64:
			out[i] = float64(x)
		default:
			out[i] = math.NaN()
		}
	}
	return out
}

// Ints returns the named column as int64 values. Non-integer cells
// become zero.
func (f *Frame) Ints(name string) []int64 {
	col, ok := f.Column(name)
	if !ok {
		return nil
	}
	out := make([]int64, len(col))
	for i, v := range col {
		switch x := v.(type) {
		case int64:
			out[i] = x
		case float64:
			out[i] = int64(x)
		}
	}
	return out
}

// ReadOptions controls table parsing.
type ReadOptions struct {
	Comma  rune     // field separator; 0 means ','; ' ' means any run of whitespace
	Header bool     // first record holds the column names
	Names  []string // column names for headerless files
}

// Read parses a delimited text file into a frame. Column types are
// inferred: a column whose non-empty cells all parse as integers becomes
// int64, one whose cells all parse as floats becomes float64, anything
// else stays string. Empty cells are missing values.
func Read(path string, opts ReadOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records [][]string
	if opts.Comma == ' ' {
		records, err = readWhitespace(file)
	} else {
		reader := csv.NewReader(file)
		if opts.Comma != 0 {
			reader.Comma = opts.Comma
		}
		records, err = reader.ReadAll()
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cols := opts.Names
	if opts.Header {
		if len(records) == 0 {
			return nil, fmt.Errorf("parsing %s: missing header row", path)
		}
		cols = records[0]
		records = records[1:]
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("parsing %s: no column names", path)
	}
	for i, rec := range records {
		if len(rec) != len(cols) {
			return nil, fmt.Errorf("parsing %s: row %d has %d fields, want %d", path, i+1, len(rec), len(cols))
		}
	}

	f := New(cols...)
	for _, row := range inferColumns(cols, records) {
		f.rows = append(f.rows, row)
	}
	return f, nil
}

// readWhitespace splits each non-blank line on runs of whitespace.
func readWhitespace(r io.Reader) ([][]string, error) {
	var records [][]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		records = append(records, fields)
	}
	return records, scanner.Err()
}

// inferColumns converts string records into typed cells, one column at
// a time.
func inferColumns(cols []string, records [][]string) [][]any {
	rows := make([][]any, len(records))
	for i := range rows {
		rows[i] = make([]any, len(cols))
	}

	for j := range cols {
		isInt, isFloat := true, true
		for _, rec := range records {
			s := rec[j]
			if s == "" {
				continue
			}
			if isInt {
				if _, err := strconv.ParseInt(s, 10, 64); err != nil {
					isInt = false
				}
			}
			if !isInt && isFloat {
				if _, err := strconv.ParseFloat(s, 64); err != nil {
					isFloat = false
				}
			}
		}
		for i, rec := range records {
			s := rec[j]
			switch {
			case s == "":
				rows[i][j] = nil
			case isInt:
				v, _ := strconv.ParseInt(s, 10, 64)
				rows[i][j] = v
			case isFloat:
				v, _ := strconv.ParseFloat(s, 64)
				rows[i][j] = v
			default:
				rows[i][j] = s
			}
		}
	}
	return rows
}

// WriteCSV writes the frame as CSV with a header row. Floats are
// rendered with four decimal places, NaN and missing cells as empty
// fields.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.cols); err != nil {
		return err
	}
	record := make([]string, len(f.cols))
	for _, row := range f.rows {
		for j, v := range row {
			record[j] = formatCell(v, 4)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes the frame to a file, creating or truncating it.
func (f *Frame) SaveCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

// formatCell renders a cell value. Floats use the given precision,
// or the shortest exact form when prec is negative.
func formatCell(v any, prec int) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', prec, 64)
	default:
		return fmt.Sprint(x)
	}
}
