// Package repo manages the remote repository index and the local store
// of benchmark datasets and checkpoints.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// ItemType distinguishes the two kinds of repository items.
type ItemType string

const (
	TypeDataset    ItemType = "dataset"
	TypeCheckpoint ItemType = "checkpoint"
)

// ArchiveFormat names the packaging of a downloadable item.
type ArchiveFormat string

const (
	ArchiveZip    ArchiveFormat = "zip"
	ArchiveTarZst ArchiveFormat = "tar.zst"
)

// Origin describes one downloadable item of the repository index.
type Origin struct {
	Name        string        `json:"name"`
	Type        ItemType      `json:"type"`
	Description string        `json:"description,omitempty"`
	Origin      string        `json:"origin"` // download URL of the archive
	Size        int64         `json:"size,omitempty"`
	Checksum    string        `json:"checksum"` // blake3 hex of the archive bytes
	Archive     ArchiveFormat `json:"archive"`
}

// Host returns the host part of the origin URL, for display.
func (o Origin) Host() string {
	u, err := url.Parse(o.Origin)
	if err != nil {
		return o.Origin
	}
	return u.Host
}

// SizeLabel renders the item size in human units.
func (o Origin) SizeLabel() string {
	const unit = 1024
	if o.Size < unit {
		return fmt.Sprintf("%d B", o.Size)
	}
	div, exp := int64(unit), 0
	for n := o.Size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(o.Size)/float64(div), "KMGTPE"[exp])
}

// Index is the parsed repository index (repo.json).
type Index struct {
	Datasets    []Origin `json:"datasets"`
	Checkpoints []Origin `json:"checkpoints"`
}

// All returns every origin, datasets first.
func (idx *Index) All() []Origin {
	out := make([]Origin, 0, len(idx.Datasets)+len(idx.Checkpoints))
	out = append(out, idx.Datasets...)
	out = append(out, idx.Checkpoints...)
	return out
}

// Find looks an origin up by name across both sections.
func (idx *Index) Find(name string) (Origin, bool) {
	for _, o := range idx.All() {
		if o.Name == name {
			return o, true
		}
	}
	return Origin{}, false
}

// Validate checks the index for structural problems: unnamed or
// duplicate items, unparseable origin URLs, unknown archive formats.
func (idx *Index) Validate() error {
	seen := make(map[string]bool)
	for _, o := range idx.All() {
		if o.Name == "" {
			return fmt.Errorf("index item with empty name (origin %s)", o.Origin)
		}
		if seen[o.Name] {
			return fmt.Errorf("duplicate index item: %s", o.Name)
		}
		seen[o.Name] = true

		u, err := url.Parse(o.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("index item %s: invalid origin url %q", o.Name, o.Origin)
		}
		switch o.Archive {
		case ArchiveZip, ArchiveTarZst:
		default:
			return fmt.Errorf("index item %s: unknown archive format %q", o.Name, o.Archive)
		}
	}
	return nil
}

// LoadIndex reads a cached repository index file.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing index %s: %w", path, err)
	}
	return &idx, nil
}

// UpdateIndex fetches the repository index from origin and writes it to
// path. An index that fails validation is rejected before the cached
// file is touched.
func UpdateIndex(ctx context.Context, client *http.Client, origin, path string) (*Index, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin, nil)
	if err != nil {
		return nil, fmt.Errorf("building index request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching index: %s returned %s", origin, resp.Status)
	}

	var idx Index
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return nil, fmt.Errorf("parsing index from %s: %w", origin, err)
	}
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("rejecting index from %s: %w", origin, err)
	}

	data, err := json.MarshalIndent(&idx, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}
	return &idx, nil
}
