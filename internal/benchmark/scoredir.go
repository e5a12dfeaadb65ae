package benchmark

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/RobinHuo/zrc-benchmarks/internal/frame"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
)

// ScoreDir reads back the reports a benchmark wrote and aggregates
// them into a leaderboard entry.
type ScoreDir interface {
	Location() string
	BuildLeaderboard() (*LeaderboardEntry, error)
}

// Dir is the common part of a score directory: its location, the
// optional submission meta, and the readback helpers benchmarks
// aggregate with.
type Dir struct {
	location string
	meta     *submission.Meta
}

// NewDir binds a score directory to its submission meta. A nil meta is
// allowed; publication info then defaults to empty.
func NewDir(location string, meta *submission.Meta) Dir {
	return Dir{location: location, meta: meta}
}

// Location returns the score directory path.
func (d Dir) Location() string {
	return d.location
}

// Path returns the full path of a report inside the directory.
func (d Dir) Path(name string) string {
	return filepath.Join(d.location, name)
}

// HasScore reports whether the named report was written.
func (d Dir) HasScore(name string) bool {
	info, err := os.Stat(d.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// ReadScore loads a written CSV report back into a frame.
func (d Dir) ReadScore(name string) (*frame.Frame, error) {
	f, err := frame.Read(d.Path(name), frame.ReadOptions{Header: true})
	if err != nil {
		return nil, fmt.Errorf("reading score %s: %w", name, err)
	}
	return f, nil
}

// PublicationInfo maps the submission meta onto a publication entry.
// Without meta the entry carries an empty institution.
func (d Dir) PublicationInfo() PublicationEntry {
	if d.meta == nil {
		return PublicationEntry{Institution: ""}
	}
	pub := d.meta.Publication
	return PublicationEntry{
		AuthorLabel: pub.AuthorLabel,
		Authors:     pub.Authors,
		PaperTitle:  pub.PaperTitle,
		PaperURL:    pub.PaperURL,
		Institution: pub.Institution,
		Team:        pub.Team,
		Code:        d.meta.CodeURL,
		OpenScience: d.meta.OpenSource,
	}
}

// NewEntry assembles a leaderboard entry around the given scores,
// stamping id, time, publication info and the content hash.
func (d Dir) NewEntry(benchmarkName string, scores any) (*LeaderboardEntry, error) {
	hash, err := d.ContentHash()
	if err != nil {
		return nil, err
	}
	entry := &LeaderboardEntry{
		ID:          uuid.New(),
		Benchmark:   benchmarkName,
		Submitted:   time.Now().UTC(),
		Publication: d.PublicationInfo(),
		Scores:      scores,
		ContentHash: hash,
	}
	if d.meta != nil {
		entry.ModelID = d.meta.ModelInfo.ModelID
		entry.Description = d.meta.ModelInfo.SystemDescription
	}
	return entry, nil
}

// ContentHash hashes every report in the directory, in name order,
// names included. The leaderboard file itself is excluded so the hash
// is stable across rebuilds.
func (d Dir) ContentHash() (string, error) {
	entries, err := os.ReadDir(d.location)
	if err != nil {
		return "", fmt.Errorf("hashing score directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == LeaderboardFile {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	hasher := blake3.New()
	for _, name := range names {
		io.WriteString(hasher, name)
		file, err := os.Open(d.Path(name))
		if err != nil {
			return "", fmt.Errorf("hashing score directory: %w", err)
		}
		_, err = io.Copy(hasher, file)
		file.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", name, err)
		}
	}
	return "blake3:" + hex.EncodeToString(hasher.Sum(nil)), nil
}
