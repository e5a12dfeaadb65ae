package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// LeaderboardFile is the aggregate written next to the score reports.
const LeaderboardFile = "leaderboard.json"

// PublicationEntry is the public attribution block of a leaderboard
// entry.
type PublicationEntry struct {
	AuthorLabel string `json:"author_label,omitempty"`
	Authors     string `json:"authors,omitempty"`
	PaperTitle  string `json:"paper_title,omitempty"`
	PaperURL    string `json:"paper_url,omitempty"`
	Institution string `json:"institution"`
	Team        string `json:"team,omitempty"`
	Code        string `json:"code,omitempty"`
	OpenScience bool   `json:"open_science"`
}

// LeaderboardEntry is one submission's aggregated result. Scores holds
// the benchmark-specific score struct.
type LeaderboardEntry struct {
	ID          uuid.UUID        `json:"id"`
	Benchmark   string           `json:"benchmark"`
	Submitted   time.Time        `json:"submitted"`
	ModelID     string           `json:"model_id,omitempty"`
	Description string           `json:"description,omitempty"`
	Publication PublicationEntry `json:"publication"`
	Scores      any              `json:"scores"`
	ContentHash string           `json:"content_hash,omitempty"`
}

// Save writes the entry as indented JSON into dir.
func (e *LeaderboardEntry) Save(dir string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding leaderboard entry: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, LeaderboardFile), data, 0o644); err != nil {
		return fmt.Errorf("writing leaderboard entry: %w", err)
	}
	return nil
}
