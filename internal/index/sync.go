package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcmassia/nexusdrive/internal/checksum"
)

// Reconcile brings derived data back in line with the objects table:
//   - links whose target object no longer exists are dropped
//   - stale content checksums are recomputed
func Reconcile(ctx context.Context, db *DB, logger *slog.Logger) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM links WHERE target NOT IN (SELECT id FROM objects)`)
	if err != nil {
		return fmt.Errorf("index: prune links: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Debug("reconcile: pruned dangling links", slog.Int64("count", n))
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT id, content, checksum FROM objects`)
	if err != nil {
		return fmt.Errorf("index: scan checksums: %w", err)
	}
	stale := make(map[string]string)
	for rows.Next() {
		var id, content, cs string
		if err := rows.Scan(&id, &content, &cs); err != nil {
			rows.Close()
			return err
		}
		if sum := checksum.Sum([]byte(content)); sum != cs {
			stale[id] = sum
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for id, sum := range stale {
		if _, err := db.conn.ExecContext(ctx, `UPDATE objects SET checksum = ? WHERE id = ?`, sum, id); err != nil {
			logger.Warn("reconcile: checksum update failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("reconcile: checksum refreshed", slog.String("id", id))
	}
	return nil
}
