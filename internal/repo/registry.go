package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/RobinHuo/zrc-benchmarks/internal/config"
)

var (
	ErrNotFound         = errors.New("not found in repository index")
	ErrNotInstalled     = errors.New("not installed locally")
	ErrAlreadyInstalled = errors.New("already installed")
	ErrChecksum         = errors.New("archive checksum mismatch")
	ErrNoIndex          = errors.New("no repository index, run update-index first")
)

// Registry resolves repository items by name. Resolution happens once
// per name for the process lifetime; callers share the cached item and
// whatever it has already loaded.
type Registry struct {
	cfg    *config.Config
	dl     *Downloader
	logger *slog.Logger

	indexOnce sync.Once
	index     *Index
	indexErr  error

	cache *xsync.MapOf[string, *Item]
}

// NewRegistry creates a registry over the configured app directory.
func NewRegistry(cfg *config.Config, dl *Downloader, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		dl:     dl,
		logger: logger,
		cache:  xsync.NewMapOf[string, *Item](),
	}
}

// Index returns the cached repository index, loading it on first use.
func (r *Registry) Index() (*Index, error) {
	r.indexOnce.Do(func() {
		idx, err := LoadIndex(r.cfg.IndexPath())
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.indexErr = fmt.Errorf("%s: %w", r.cfg.IndexPath(), ErrNoIndex)
			} else {
				r.indexErr = err
			}
			return
		}
		r.index = idx
	})
	return r.index, r.indexErr
}

// Get resolves an item by name. Repeated calls return the same item.
func (r *Registry) Get(name string) (*Item, error) {
	if item, ok := r.cache.Load(name); ok {
		return item, nil
	}

	idx, err := r.Index()
	if err != nil {
		return nil, err
	}
	origin, ok := idx.Find(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	item := &Item{
		origin: origin,
		root:   r.rootFor(origin.Type),
		cfg:    r.cfg,
		dl:     r.dl,
		logger: r.logger,
	}
	actual, _ := r.cache.LoadOrStore(name, item)
	return actual, nil
}

// Dataset resolves a name and checks that it names a dataset.
func (r *Registry) Dataset(name string) (*Item, error) {
	item, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if item.Type() != TypeDataset {
		return nil, fmt.Errorf("%s is a %s, not a dataset", name, item.Type())
	}
	return item, nil
}

// Checkpoint resolves a name and checks that it names a checkpoint.
func (r *Registry) Checkpoint(name string) (*Item, error) {
	item, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if item.Type() != TypeCheckpoint {
		return nil, fmt.Errorf("%s is a %s, not a checkpoint", name, item.Type())
	}
	return item, nil
}

// Available lists every origin of the given type from the index.
func (r *Registry) Available(t ItemType) ([]Origin, error) {
	idx, err := r.Index()
	if err != nil {
		return nil, err
	}
	var out []Origin
	for _, o := range idx.All() {
		if o.Type == t {
			out = append(out, o)
		}
	}
	return out, nil
}

// InstalledNames lists the locally installed items of the given type,
// sorted by name. Works without a repository index.
func (r *Registry) InstalledNames(t ItemType) ([]string, error) {
	entries, err := os.ReadDir(r.rootFor(t))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		// staging directories are dot-prefixed
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (r *Registry) rootFor(t ItemType) string {
	if t == TypeCheckpoint {
		return r.cfg.CheckpointsDir()
	}
	return r.cfg.DatasetsDir()
}
