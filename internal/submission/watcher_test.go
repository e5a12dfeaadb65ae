package submission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcherEventFilter(t *testing.T) {
	t.Parallel()

	w := NewWatcher("/sub", 0, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"written_feature", fsnotify.Event{Name: "/sub/semantic/dev/a.npy", Op: fsnotify.Write}, true},
		{"created_sidecar", fsnotify.Event{Name: "/sub/params.yaml", Op: fsnotify.Create}, true},
		{"removed_file", fsnotify.Event{Name: "/sub/lexical/dev.txt", Op: fsnotify.Remove}, true},
		{"chmod_only", fsnotify.Event{Name: "/sub/lexical/dev.txt", Op: fsnotify.Chmod}, false},
		{"score_output", fsnotify.Event{Name: "/sub/scores/score_lexical_dev_by_pair.csv", Op: fsnotify.Create}, false},
		{"hidden_file", fsnotify.Event{Name: "/sub/.dev.txt.lock", Op: fsnotify.Write}, false},
		{"editor_swap", fsnotify.Event{Name: "/sub/lexical/dev.txt.swp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := w.isRelevantEvent(tt.event); got != tt.want {
				t.Errorf("isRelevantEvent(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var mu sync.Mutex
	fired := 0
	w := NewWatcher(dir, 100*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	// give the watcher time to arm
	time.Sleep(200 * time.Millisecond)

	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x 0.5\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := fired
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// a burst of writes settles into a single callback
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	n := fired
	mu.Unlock()
	if n != 1 {
		t.Errorf("watcher fired %d times for one burst, want 1", n)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch() = %v, want context.Canceled", err)
	}
}
