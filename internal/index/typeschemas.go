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

// GetSchema returns the schema for typ or apperr.ErrNotFound.
func (db *DB) GetSchema(ctx context.Context, typ string) (*models.TypeSchema, error) {
	var (
		s         models.TypeSchema
		propsJSON string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT type, color, properties FROM type_schemas WHERE type = ?`, typ).
		Scan(&s.Type, &s.Color, &propsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get schema: %w", err)
	}
	if err := json.Unmarshal([]byte(propsJSON), &s.Properties); err != nil {
		return nil, fmt.Errorf("index: decode schema %s: %w", typ, err)
	}
	return &s, nil
}

// SaveSchema inserts or replaces a schema.
func (db *DB) SaveSchema(ctx context.Context, s *models.TypeSchema) error {
	props := s.Properties
	if props == nil {
		props = []models.PropertyDefinition{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("index: encode schema: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO type_schemas (type, color, properties)
		VALUES (?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			color      = excluded.color,
			properties = excluded.properties
	`, s.Type, s.Color, string(propsJSON))
	if err != nil {
		return fmt.Errorf("index: save schema: %w", err)
	}
	return nil
}

// DeleteSchema removes the schema for typ or returns apperr.ErrNotFound.
func (db *DB) DeleteSchema(ctx context.Context, typ string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM type_schemas WHERE type = ?`, typ)
	if err != nil {
		return fmt.Errorf("index: delete schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListSchemas returns every schema ordered by type.
func (db *DB) ListSchemas(ctx context.Context) ([]*models.TypeSchema, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT type, color, properties FROM type_schemas ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("index: list schemas: %w", err)
	}
	defer rows.Close()

	out := []*models.TypeSchema{}
	for rows.Next() {
		var (
			s         models.TypeSchema
			propsJSON string
		)
		if err := rows.Scan(&s.Type, &s.Color, &propsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(propsJSON), &s.Properties); err != nil {
			return nil, fmt.Errorf("index: decode schema %s: %w", s.Type, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
