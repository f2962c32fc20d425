package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type dropRecorder struct {
	mu    sync.Mutex
	drops map[string]string // source id -> path
	err   error
}

func newDropRecorder(err error) *dropRecorder {
	return &dropRecorder{drops: make(map[string]string), err: err}
}

func (r *dropRecorder) ingest(_ context.Context, sourceID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.drops[sourceID] = path
	return nil
}

func (r *dropRecorder) get(sourceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.drops[sourceID]
	return path, ok
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

func TestWatcherPicksUpDroppedFile(t *testing.T) {
	dir := t.TempDir()
	rec := newDropRecorder(nil)

	w := NewWatcher(dir, []string{".zip", ".json"}, rec.ingest, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "en-tafsir-ibn-kathir.json")
	if err := os.WriteFile(path, []byte(`[]`), 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 5*time.Second, func() bool {
		got, ok := rec.get("en-tafsir-ibn-kathir")
		return ok && got == path
	}) {
		t.Fatal("dropped file was not picked up")
	}

	// Successful ingestion consumes the dropped file.
	if !waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}) {
		t.Error("expected dropped file to be removed after ingest")
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := newDropRecorder(nil)

	w := NewWatcher(dir, []string{".zip"}, rec.ingest, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if _, ok := rec.get("notes"); ok {
		t.Error("expected .txt file to be ignored")
	}
}

func TestWatcherSyncsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ar-tafsir-jalalayn.zip")
	if err := os.WriteFile(path, []byte("pre-existing"), 0644); err != nil {
		t.Fatal(err)
	}
	rec := newDropRecorder(nil)

	w := NewWatcher(dir, []string{".zip"}, rec.ingest, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !waitFor(t, 5*time.Second, func() bool {
		_, ok := rec.get("ar-tafsir-jalalayn")
		return ok
	}) {
		t.Fatal("pre-existing file was not picked up")
	}
}

func TestWatcherKeepsFileOnIngestFailure(t *testing.T) {
	dir := t.TempDir()
	rec := newDropRecorder(os.ErrPermission)

	w := NewWatcher(dir, []string{".json"}, rec.ingest, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "bad-source.json")
	if err := os.WriteFile(path, []byte(`[]`), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to remain after failed ingest, got %v", err)
	}
}

func TestWatcherCreatesMissingRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drop")
	rec := newDropRecorder(nil)

	w := NewWatcher(dir, nil, rec.ingest, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected drop directory to be created, got %v", err)
	}
}

func TestSourceIDFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/drop/en-tafsir-ibn-kathir.zip", "en-tafsir-ibn-kathir"},
		{"/drop/ar-irab-al-quran.json", "ar-irab-al-quran"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := sourceIDFromPath(tc.path); got != tc.want {
			t.Errorf("sourceIDFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
