package importer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// maxEntryBytes caps how much of a single archive entry is read into memory.
const maxEntryBytes = 256 << 20

// Entry is one raw archive entry with a forward-slash normalized path.
type Entry struct {
	Path     string
	Dir      bool
	Modified time.Time
	open     func() (io.ReadCloser, error)
}

// NewEntry builds an in-memory entry, mainly for callers that do not read zips.
func NewEntry(p string, data []byte) Entry {
	return Entry{
		Path: NormalizePath(p),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Read returns the entry's bytes.
func (e Entry) Read() ([]byte, error) {
	if e.open == nil {
		return nil, fmt.Errorf("read %s: entry has no content", e.Path)
	}
	rc, err := e.open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	if len(data) > maxEntryBytes {
		return nil, fmt.Errorf("read %s: entry exceeds %d bytes", e.Path, maxEntryBytes)
	}
	return data, nil
}

// OpenArchive enumerates every entry of a zip archive.
func OpenArchive(r io.ReaderAt, size int64) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, Entry{
			Path:     NormalizePath(f.Name),
			Dir:      f.FileInfo().IsDir(),
			Modified: f.Modified,
			open:     f.Open,
		})
	}
	return entries, nil
}

// NormalizePath converts an archive name to a clean forward-slash relative path.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}
