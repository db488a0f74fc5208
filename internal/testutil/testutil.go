// Package testutil provides shared test helpers for databases, asset stores
// and import archives.
package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"testing"

	"github.com/mcmassia/nexusdrive/internal/index"
	"github.com/mcmassia/nexusdrive/internal/storage"
)

// File is one entry of a test archive. A path ending in "/" is a directory.
type File struct {
	Path string
	Body string
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "nexus-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestAssets creates a temporary asset directory with a file-system store.
func TestAssets(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// BuildZip writes files into an in-memory zip archive in the given order.
func BuildZip(t *testing.T, files ...File) *bytes.Reader {
	t.Helper()
	return bytes.NewReader(ZipBytes(t, files...))
}

// ZipBytes is BuildZip returning the raw archive bytes.
func ZipBytes(t *testing.T, files ...File) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Path)
		if err != nil {
			t.Fatalf("zip create %s: %v", f.Path, err)
		}
		if len(f.Path) > 0 && f.Path[len(f.Path)-1] == '/' {
			continue
		}
		if _, err := w.Write([]byte(f.Body)); err != nil {
			t.Fatalf("zip write %s: %v", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
