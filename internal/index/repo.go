package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/checksum"
	"github.com/mcmassia/nexusdrive/internal/models"
)

// ObjectRow is the lightweight listing form of an object.
type ObjectRow struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Tags      []string  `json:"tags"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows ListObjects.
type ListFilter struct {
	Type   string
	Tag    string
	Sort   string // "title" or "updated"
	Limit  int
	Offset int
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Snippet string `json:"snippet"`
}

// SaveObject inserts or replaces an object, its FTS entry, and its outgoing
// links within a transaction.
func (db *DB) SaveObject(ctx context.Context, obj *models.KnowledgeObject) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := obj.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	props := obj.Metadata
	if props == nil {
		props = []models.Property{}
	}
	metaJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("index: encode metadata: %w", err)
	}
	body := plainText(obj.Content)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO objects (id, title, type, content, body, metadata, tags, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			type       = excluded.type,
			content    = excluded.content,
			body       = excluded.body,
			metadata   = excluded.metadata,
			tags       = excluded.tags,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, obj.ID, obj.Title, obj.Type, obj.Content, body, string(metaJSON), string(tagsJSON),
		checksum.Sum([]byte(obj.Content)), obj.LastModified.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert object: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, obj.ID, obj.Title, body, tags); err != nil {
		return err
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, obj.ID)
	if len(obj.Links) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range obj.Links {
			if _, err := stmt.ExecContext(ctx, obj.ID, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteObject removes an object, its FTS entry, and outgoing links.
// It returns apperr.ErrNotFound when no such object exists.
func (db *DB) DeleteObject(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete object: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	ftsDelete(tx, id)
	_, _ = tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, id)

	return tx.Commit()
}

// GetObject loads a full object.
func (db *DB) GetObject(ctx context.Context, id string) (*models.KnowledgeObject, error) {
	var (
		obj      models.KnowledgeObject
		metaJSON string
		tagsJSON string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, title, type, content, metadata, tags, updated_at
		FROM objects WHERE id = ?
	`, id).Scan(&obj.ID, &obj.Title, &obj.Type, &obj.Content, &metaJSON, &tagsJSON, &obj.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get object: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &obj.Metadata); err != nil {
		return nil, fmt.Errorf("index: decode metadata: %w", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &obj.Tags)

	links, err := db.outgoing(ctx, id)
	if err != nil {
		return nil, err
	}
	obj.Links = links
	return &obj, nil
}

// GetChecksum returns the stored content checksum, or empty string if not found.
func (db *DB) GetChecksum(ctx context.Context, id string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM objects WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListObjects returns one page of objects and the total matching count.
func (db *DB) ListObjects(ctx context.Context, f ListFilter) ([]ObjectRow, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(objects.tags) WHERE value = ?)")
		args = append(args, f.Tag)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM objects`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count objects: %w", err)
	}

	order := "title COLLATE NOCASE ASC"
	if f.Sort == "updated" {
		order = "updated_at DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, type, tags, checksum, updated_at FROM objects`+clause+
			` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list objects: %w", err)
	}
	defer rows.Close()

	out := []ObjectRow{}
	for rows.Next() {
		var (
			r        ObjectRow
			tagsJSON string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Type, &tagsJSON, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllTitles returns the title of every stored object.
func (db *DB) AllTitles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT title FROM objects`)
	if err != nil {
		return nil, fmt.Errorf("index: all titles: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out[t] = struct{}{}
	}
	return out, rows.Err()
}

// Backlinks returns the ids of all objects that link to id.
func (db *DB) Backlinks(ctx context.Context, id string) ([]string, error) {
	return db.linkQuery(ctx, `SELECT source FROM links WHERE target = ? ORDER BY source`, id)
}

func (db *DB) outgoing(ctx context.Context, id string) ([]string, error) {
	return db.linkQuery(ctx, `SELECT target FROM links WHERE source = ? ORDER BY target`, id)
}

func (db *DB) linkQuery(ctx context.Context, q, id string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("index: links: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// plainText strips markup from converted content for search.
func plainText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
