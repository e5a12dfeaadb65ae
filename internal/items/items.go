// Package items provides typed handles on submission and dataset files.
package items

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileType classifies a file by its content format.
type FileType string

const (
	Txt  FileType = "txt"
	CSV  FileType = "csv"
	NPY  FileType = "npy"
	YAML FileType = "yaml"
	JSON FileType = "json"
	WAV  FileType = "wav"
	FLAC FileType = "flac"
)

// IsTabular reports whether files of this type can be parsed as a table.
func (ft FileType) IsTabular() bool {
	return ft == Txt || ft == CSV
}

// String returns the string representation of a FileType.
func (ft FileType) String() string {
	return string(ft)
}

// TypeForPath infers the file type from a path's extension.
// Returns ok=false for unknown extensions.
func TypeForPath(path string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return Txt, true
	case ".csv":
		return CSV, true
	case ".npy":
		return NPY, true
	case ".yaml", ".yml":
		return YAML, true
	case ".json":
		return JSON, true
	case ".wav":
		return WAV, true
	case ".flac":
		return FLAC, true
	default:
		return "", false
	}
}

// FileItem is a handle on a single data file.
type FileItem struct {
	File string
	Type FileType
}

// NewFileItem creates a FileItem for an existing regular file.
// The file type is inferred from the extension unless overridden.
func NewFileItem(path string, overrideType ...FileType) (*FileItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file item %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("file item %s: is a directory", path)
	}

	ft, ok := TypeForPath(path)
	if len(overrideType) > 0 {
		ft = overrideType[0]
	} else if !ok {
		return nil, fmt.Errorf("file item %s: unknown file type", path)
	}

	return &FileItem{File: path, Type: ft}, nil
}

// Stem returns the file name without directory or extension.
func (fi *FileItem) Stem() string {
	return Stem(fi.File)
}

// FileListItem is a handle on a directory of data files sharing one type.
type FileListItem struct {
	Root  string
	Files []string
	Type  FileType
}

// NewFileListItem creates a FileListItem from all files in dir carrying the
// extension of the given type. The file list is sorted by name.
func NewFileListItem(dir string, ft FileType) (*FileListItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("file list %s: %w", dir, err)
	}

	ext := "." + string(ft)
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	return &FileListItem{Root: dir, Files: files, Type: ft}, nil
}

// Stems returns the file names without directories or extensions,
// in file order.
func (fl *FileListItem) Stems() []string {
	stems := make([]string, len(fl.Files))
	for i, f := range fl.Files {
		stems[i] = Stem(f)
	}
	return stems
}

// Find returns the path of the file with the given stem, or ok=false.
func (fl *FileListItem) Find(stem string) (string, bool) {
	for _, f := range fl.Files {
		if Stem(f) == stem {
			return f, true
		}
	}
	return "", false
}

// Stem returns the base name of a path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
