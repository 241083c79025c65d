package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/litindex/internal/indexer"
)

type recorder struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recorder) IndexFile(ctx context.Context, path string) (*indexer.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, filepath.Base(path))
	return &indexer.Report{Indexed: []string{path}}, nil
}

func (r *recorder) RemoveFile(ctx context.Context, path string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, filepath.Base(path))
	return 1, nil
}

func (r *recorder) snapshot() (indexed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	indexed = append([]string(nil), r.indexed...)
	removed = append([]string(nil), r.removed...)
	sort.Strings(indexed)
	return indexed, removed
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func startWatcher(t *testing.T, roots []string, rec *recorder) *Watcher {
	t.Helper()
	w := New(roots, []string{".json", ".txt"}, true, rec, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_IndexesAndDebounces(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	path := filepath.Join(dir, "batch.json")
	for i := 0; i < 5; i++ {
		writeFile(t, path, `{"id":"PMC1","text":"draft"}`)
	}
	writeFile(t, filepath.Join(dir, "ignore.xyz"), "skip")

	eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		return len(indexed) > 0
	})
	time.Sleep(150 * time.Millisecond)
	indexed, _ := rec.snapshot()
	if len(indexed) != 1 || indexed[0] != "batch.json" {
		t.Errorf("indexed = %v, want a single batch.json", indexed)
	}
}

func TestWatcher_RemovesDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "notes")
	eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		return len(indexed) == 1
	})
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, removed := rec.snapshot()
		return len(removed) == 1 && removed[0] == "notes.txt"
	})
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(nested, "deep.json"), `{"id":"PMC2","text":"deep"}`)
	writeFile(t, filepath.Join(nested, "skip.xyz"), "skip")

	eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		for _, p := range indexed {
			if p == "deep.json" {
				return true
			}
		}
		return false
	})
	indexed, _ := rec.snapshot()
	for _, p := range indexed {
		if p == "skip.xyz" {
			t.Error("skip.xyz should not be indexed")
		}
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.json"), "{}")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "c.xyz"), "c")

	rec := &recorder{}
	w := startWatcher(t, []string{dir}, rec)
	w.SyncExisting(context.Background())

	indexed, _ := rec.snapshot()
	if len(indexed) != 2 || indexed[0] != "a.json" || indexed[1] != "b.txt" {
		t.Errorf("indexed = %v", indexed)
	}
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	w := startWatcher(t, []string{root}, &recorder{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != root {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, nil, false, &recorder{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.json", []string{".json"}, true},
		{"/a/b.JSON", []string{"json"}, true},
		{"/a/b.md", []string{".json"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{".json"}, false},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}
