package importer

import (
	"context"
	"path"
	"strings"

	"github.com/mcmassia/nexusdrive/internal/models"
)

const macOSMetadataDir = "__MACOSX/"

// ScanOptions controls duplicate detection during the scan.
type ScanOptions struct {
	// ExistingTitles are titles already present in the destination store.
	ExistingTitles map[string]struct{}
	// Overwrite disables title-based skipping.
	Overwrite bool
}

// Scan classifies every entry of the archive. Accepted content files become
// file records on run; every other non-ignored file is returned as a pending
// asset in archive order. Cancellation is checked between entries.
func Scan(ctx context.Context, run *Run, entries []Entry, opts ScanOptions) ([]Entry, error) {
	var assets []Entry
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.Dir || e.Path == "" || ignored(e.Path) {
			continue
		}
		run.entries[e.Path] = e

		if !isContent(e.Path) {
			assets = append(assets, e)
			continue
		}

		title := titleFromPath(e.Path)
		if !opts.Overwrite {
			if _, exists := opts.ExistingTitles[title]; exists {
				run.skipped++
				continue
			}
		}
		if _, dup := run.records[e.Path]; dup {
			continue
		}
		run.records[e.Path] = &models.FileRecord{
			ID:           run.newID(),
			Title:        title,
			InferredType: models.DefaultType,
			Path:         e.Path,
		}
		run.order = append(run.order, e.Path)
	}
	return assets, nil
}

// ignored reports whether p is OS metadata or a hidden path.
func ignored(p string) bool {
	if strings.HasPrefix(p, macOSMetadataDir) {
		return true
	}
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func isContent(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".html":
		return true
	}
	return false
}

func titleFromPath(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
