//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS objects_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM objects_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO objects_fts (id, title, body, tags) VALUES (?, ?, ?, ?)`,
		id, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM objects_fts WHERE id = ?`, id)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.id,
		       f.title,
		       o.type,
		       snippet(objects_fts, 2, '<b>', '</b>', '...', 64)
		FROM objects_fts f
		JOIN objects o ON o.id = f.id
		WHERE objects_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Type, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
