// Package importer turns an exported note archive into typed knowledge objects,
// inferred type schemas and renamed asset blobs, and can revert the last import.
package importer

import (
	"github.com/mcmassia/nexusdrive/internal/models"
)

// Run holds the state of one import. It is created fresh for every import and
// never shared between imports; the scanner fills it and every later phase
// only reads the record and asset maps.
type Run struct {
	records     map[string]*models.FileRecord // normalized path -> record
	order       []string                      // content paths in scan order
	assets      map[string]string             // normalized path -> stored name
	assetOrder  []string
	storedNames map[string]struct{}
	entries     map[string]Entry

	skipped int

	newID  func() string
	tokens TokenGenerator
}

// NewRun returns an empty run using newID for file identities and tokens for
// asset name suffixes.
func NewRun(newID func() string, tokens TokenGenerator) *Run {
	return &Run{
		records:     make(map[string]*models.FileRecord),
		assets:      make(map[string]string),
		storedNames: make(map[string]struct{}),
		entries:     make(map[string]Entry),
		newID:       newID,
		tokens:      tokens,
	}
}

// Record returns the file record stored under the normalized path p.
func (r *Run) Record(p string) (*models.FileRecord, bool) {
	rec, ok := r.records[p]
	return rec, ok
}

// Files returns all accepted file records in scan order.
func (r *Run) Files() []*models.FileRecord {
	out := make([]*models.FileRecord, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.records[p])
	}
	return out
}

// AssetName returns the stored name registered for the normalized path p.
func (r *Run) AssetName(p string) (string, bool) {
	name, ok := r.assets[p]
	return name, ok
}

// Assets returns every asset mapping in scan order.
func (r *Run) Assets() []models.AssetRecord {
	out := make([]models.AssetRecord, 0, len(r.assetOrder))
	for _, p := range r.assetOrder {
		out = append(out, models.AssetRecord{OriginalPath: p, StoredName: r.assets[p]})
	}
	return out
}

// Skipped returns how many content files were skipped as duplicates.
func (r *Run) Skipped() int { return r.skipped }

func (r *Run) entry(p string) (Entry, bool) {
	e, ok := r.entries[p]
	return e, ok
}
