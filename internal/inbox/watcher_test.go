package inbox

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

	"github.com/mcmassia/nexusdrive/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	sizes  []int64
}

func (r *recorder) callback(kind, name string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+name)
	r.mu.Unlock()
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func moved(t *testing.T, dir, sub, name string) bool {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(dir, sub, "*_"+name))
	return len(matches) == 1
}

func TestWatch_ImportsNewArchive(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	importFn := func(_ context.Context, r io.ReaderAt, size int64) error {
		rec.mu.Lock()
		rec.sizes = append(rec.sizes, size)
		rec.mu.Unlock()
		return nil
	}
	go Watch(ctx, dir, importFn, quietLogger(), rec.callback)

	time.Sleep(100 * time.Millisecond)
	data := testutil.ZipBytes(t, testutil.File{Path: "a.md", Body: "# A"})
	if err := os.WriteFile(filepath.Join(dir, "vault.zip"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("imported:vault.zip")
	}, "archive not imported by watcher")

	if !moved(t, dir, doneDir, "vault.zip") {
		t.Error("archive not moved to done/")
	}
	if _, err := os.Stat(filepath.Join(dir, "vault.zip")); !os.IsNotExist(err) {
		t.Error("archive still in inbox")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.sizes) != 1 || rec.sizes[0] != int64(len(data)) {
		t.Errorf("import sizes = %v, want [%d]", rec.sizes, len(data))
	}
}

func TestWatch_ProcessesExistingAndFailures(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.zip"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	importFn := func(context.Context, io.ReaderAt, int64) error { return errors.New("corrupt") }
	go Watch(ctx, dir, importFn, quietLogger(), rec.callback)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("failed:bad.zip")
	}, "existing archive not processed")

	if !moved(t, dir, failedDir, "bad.zip") {
		t.Error("archive not moved to failed/")
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-archive file should stay in place")
	}
}

func TestIsArchive(t *testing.T) {
	tests := map[string]bool{
		"/in/vault.zip":   true,
		"/in/VAULT.ZIP":   true,
		"/in/.hidden.zip": false,
		"/in/notes.md":    false,
	}
	for p, want := range tests {
		if got := isArchive(p); got != want {
			t.Errorf("isArchive(%q) = %v, want %v", p, got, want)
		}
	}
}
