package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	r.changed = append(r.changed, path)
	r.mu.Unlock()
}

func (r *recorder) onRemove(path string) {
	r.mu.Lock()
	r.removed = append(r.removed, path)
	r.mu.Unlock()
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changed), len(r.removed)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_ChangeAndRemove(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w := New(dir, true, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	docPath := filepath.Join(dir, "fractions.json")
	if err := os.WriteFile(docPath, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { c, _ := rec.counts(); return c >= 1 }) {
		t.Fatal("expected a change callback for a created document")
	}

	if err := os.Remove(docPath); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { _, r := rec.counts(); return r >= 1 }) {
		t.Fatal("expected a remove callback for a deleted document")
	}
	rec.mu.Lock()
	removedPath := rec.removed[0]
	rec.mu.Unlock()
	if filepath.Clean(removedPath) != filepath.Clean(docPath) {
		t.Errorf("remove callback path = %q, want %q", removedPath, docPath)
	}
}

func TestWatcher_DebouncesWriteBursts(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w := New(dir, false, rec.onChange, nil, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	docPath := filepath.Join(dir, "algebra.json")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(docPath, []byte(`[]`), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool { c, _ := rec.counts(); return c >= 1 }) {
		t.Fatal("expected the burst to produce a callback")
	}
	time.Sleep(300 * time.Millisecond)
	c, _ := rec.counts()
	if c != 1 {
		t.Errorf("got %d change callbacks for one write burst, want 1", c)
	}
}

func TestWatcher_IgnoresNonJSON(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w := New(dir, false, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	c, _ := rec.counts()
	if c != 0 {
		t.Errorf("got %d callbacks for a non-JSON file, want 0", c)
	}
}

func TestWatcher_RecursiveNewDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w := New(dir, true, rec.onChange, nil, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "grade7")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub, "geometry.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { c, _ := rec.counts(); return c >= 1 }) {
		t.Fatal("expected a callback for a document in a new subdirectory")
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}

	w := New(dir, true, rec.onChange, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	c, _ := rec.counts()
	if c != 1 {
		t.Errorf("got %d callbacks from sync, want 1", c)
	}
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "content")
	w := New(root, true, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should be created on start: %v", err)
	}
}
