package repo

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/RobinHuo/zrc-benchmarks/internal/archive"
	"github.com/RobinHuo/zrc-benchmarks/internal/config"
	"github.com/RobinHuo/zrc-benchmarks/internal/items"
)

// ContentIndexFile is the index a dataset carries at its root.
const ContentIndexFile = "index.json"

// Item is a repository item bound to its local install location.
// Items are created by the registry and cached for the process
// lifetime.
type Item struct {
	origin Origin
	root   string
	cfg    *config.Config
	dl     *Downloader
	logger *slog.Logger

	indexOnce    sync.Once
	contentIndex *ContentIndex
	indexErr     error
}

// Name returns the repository name of the item.
func (it *Item) Name() string {
	return it.origin.Name
}

// Type returns whether the item is a dataset or a checkpoint.
func (it *Item) Type() ItemType {
	return it.origin.Type
}

// Origin returns the index entry the item was resolved from.
func (it *Item) Origin() Origin {
	return it.origin
}

// Location returns the directory the item installs into.
func (it *Item) Location() string {
	return filepath.Join(it.root, it.origin.Name)
}

// Installed reports whether the item is present locally.
func (it *Item) Installed() bool {
	info, err := os.Stat(it.Location())
	return err == nil && info.IsDir()
}

// PullOptions controls download behavior.
type PullOptions struct {
	Quiet bool
}

// Pull downloads, verifies and installs the item. The archive bytes
// are hashed while they stream through extraction; on checksum
// mismatch the staged content is discarded and nothing is installed.
func (it *Item) Pull(ctx context.Context, opts PullOptions) error {
	if it.Installed() {
		return fmt.Errorf("%s: %w", it.Name(), ErrAlreadyInstalled)
	}
	if !opts.Quiet {
		it.logger.Info("pulling",
			"name", it.Name(),
			"type", it.Type(),
			"size", it.origin.SizeLabel(),
			"from", it.origin.Host())
	}

	body, _, err := it.dl.Open(ctx, it.origin.Origin)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(it.root, 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(it.root, "."+it.Name()+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	hasher := blake3.New()
	tee := io.TeeReader(body, hasher)
	content := filepath.Join(staging, "content")
	if err := os.Mkdir(content, 0o755); err != nil {
		return err
	}

	switch it.origin.Archive {
	case ArchiveTarZst:
		if err := archive.ExtractTarZst(tee, content); err != nil {
			return fmt.Errorf("installing %s: %w", it.Name(), err)
		}
	case ArchiveZip:
		// zip needs random access, so the archive lands in scratch
		// space first
		tmp, err := it.cfg.MkTemp()
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		archivePath := filepath.Join(tmp, it.Name()+".zip")
		out, err := os.Create(archivePath)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tee); err != nil {
			out.Close()
			return fmt.Errorf("downloading %s: %w", it.Name(), err)
		}
		if err := out.Close(); err != nil {
			return err
		}
		if err := archive.ExtractZip(archivePath, content); err != nil {
			return fmt.Errorf("installing %s: %w", it.Name(), err)
		}
	default:
		return fmt.Errorf("installing %s: unknown archive format %q", it.Name(), it.origin.Archive)
	}

	// drain trailing bytes so the hash covers the whole archive
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return fmt.Errorf("downloading %s: %w", it.Name(), err)
	}
	if err := it.verifyChecksum(hasher); err != nil {
		return err
	}

	return os.Rename(stripWrapperDir(content), it.Location())
}

func (it *Item) verifyChecksum(hasher *blake3.Hasher) error {
	want := strings.TrimPrefix(it.origin.Checksum, "blake3:")
	if want == "" {
		it.logger.Warn("no checksum in index, skipping verification", "name", it.Name())
		return nil
	}
	got := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%s: %w (expected %s, got %s)", it.Name(), ErrChecksum, want, got)
	}
	return nil
}

// stripWrapperDir unwraps archives that pack everything under a single
// top-level directory.
func stripWrapperDir(content string) string {
	entries, err := os.ReadDir(content)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return content
	}
	return filepath.Join(content, entries[0].Name())
}

// Uninstall removes the item's local files.
func (it *Item) Uninstall() error {
	if !it.Installed() {
		return fmt.Errorf("%s: %w", it.Name(), ErrNotInstalled)
	}
	return os.RemoveAll(it.Location())
}

// ContentIndex loads and caches the dataset's file index, with every
// path resolved against the install location.
func (it *Item) ContentIndex() (*ContentIndex, error) {
	if it.origin.Type != TypeDataset {
		return nil, fmt.Errorf("%s is a %s and has no content index", it.Name(), it.Type())
	}
	if !it.Installed() {
		return nil, fmt.Errorf("%s: %w", it.Name(), ErrNotInstalled)
	}
	it.indexOnce.Do(func() {
		data, err := os.ReadFile(filepath.Join(it.Location(), ContentIndexFile))
		if err != nil {
			it.indexErr = fmt.Errorf("reading content index of %s: %w", it.Name(), err)
			return
		}
		var ci ContentIndex
		if err := json.Unmarshal(data, &ci); err != nil {
			it.indexErr = fmt.Errorf("parsing content index of %s: %w", it.Name(), err)
			return
		}
		ci.makeAbsolute(it.Location())
		it.contentIndex = &ci
	})
	return it.contentIndex, it.indexErr
}

// ContentIndex maps named subsets to their data files.
type ContentIndex struct {
	Subsets map[string]*Subset `json:"subsets"`
}

// Subset is one named group of dataset files.
type Subset struct {
	Items map[string]*ContentItem `json:"items"`
}

// ContentItem locates one file of a subset.
type ContentItem struct {
	File string         `json:"file"`
	Type items.FileType `json:"file_type,omitempty"`
}

// makeAbsolute roots every relative file path at the dataset location.
func (ci *ContentIndex) makeAbsolute(root string) {
	for _, subset := range ci.Subsets {
		for _, item := range subset.Items {
			if !filepath.IsAbs(item.File) {
				item.File = filepath.Join(root, item.File)
			}
		}
	}
}

// Subset returns a named subset of the index.
func (ci *ContentIndex) Subset(name string) (*Subset, error) {
	s, ok := ci.Subsets[name]
	if !ok {
		return nil, fmt.Errorf("dataset has no subset %q", name)
	}
	return s, nil
}

// Item resolves a named file of the subset into a file item,
// verifying it exists on disk.
func (s *Subset) Item(name string) (*items.FileItem, error) {
	ci, ok := s.Items[name]
	if !ok {
		return nil, fmt.Errorf("subset has no item %q", name)
	}
	if ci.Type != "" {
		return items.NewFileItem(ci.File, ci.Type)
	}
	return items.NewFileItem(ci.File)
}
