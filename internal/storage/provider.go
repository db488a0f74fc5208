// Package storage persists imported asset blobs under their stored names.
package storage

import (
	"context"
	"time"
)

// AssetInfo describes one stored asset.
type AssetInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// AssetStore is the interface for asset blob operations. Names are flat
// and already sanitized by the importer.
type AssetStore interface {
	// Put writes data under name, replacing any previous blob.
	Put(ctx context.Context, name string, data []byte) error
	// Get returns the blob stored under name or apperr.ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes the blob stored under name or returns apperr.ErrNotFound.
	Delete(ctx context.Context, name string) error
	// List returns every stored asset.
	List(ctx context.Context) ([]AssetInfo, error)
}
