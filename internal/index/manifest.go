package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/models"
)

// manifestKey is the kv entry holding the most recent import's manifest.
const manifestKey = "last_import"

// LoadManifest returns the stored manifest or apperr.ErrNotFound.
func (db *DB) LoadManifest(ctx context.Context) (*models.ImportManifest, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, manifestKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: load manifest: %w", err)
	}
	var m models.ImportManifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("index: decode manifest: %w", err)
	}
	return &m, nil
}

// SaveManifest replaces any stored manifest with m.
func (db *DB) SaveManifest(ctx context.Context, m *models.ImportManifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("index: encode manifest: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, manifestKey, string(raw))
	if err != nil {
		return fmt.Errorf("index: save manifest: %w", err)
	}
	return nil
}

// DeleteManifest removes the stored manifest. Deleting a missing manifest is not an error.
func (db *DB) DeleteManifest(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, manifestKey); err != nil {
		return fmt.Errorf("index: delete manifest: %w", err)
	}
	return nil
}
