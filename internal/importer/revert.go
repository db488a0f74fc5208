package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcmassia/nexusdrive/internal/apperr"
)

// Revert removes everything the last import recorded in its manifest:
// objects first, then assets, then the types that import created. The
// manifest is deleted only when every removal succeeded, so a failed revert
// can be retried. Items that are already gone count as removed.
func (e *Engine) Revert(ctx context.Context, onProgress ProgressFunc) (*RevertResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, apperr.ErrImportInProgress
	}
	defer e.busy.Store(false)

	if e.manifests == nil {
		return nil, apperr.ErrNoManifest
	}
	m, err := e.manifests.LoadManifest(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNoManifest
		}
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	total := len(m.IDs) + len(m.Assets) + len(m.Types)
	done := 0
	step := func(status string) {
		done++
		if onProgress != nil && e.due(done, total) {
			onProgress(Progress{Phase: PhaseReverting, Status: status, Current: done, Total: total})
		}
	}
	res := &RevertResult{}

	for _, id := range m.IDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if e.objects != nil {
			if err := e.objects.DeleteObject(ctx, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return res, fmt.Errorf("revert object %s: %w", id, err)
			}
		}
		res.Objects++
		step("Removing documents")
	}

	for _, name := range m.Assets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if e.assets != nil {
			if err := e.assets.Delete(ctx, name); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return res, fmt.Errorf("revert asset %s: %w", name, err)
			}
		}
		res.Assets++
		step("Removing assets")
	}

	for _, typ := range m.Types {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if e.schemas != nil {
			if err := e.schemas.DeleteSchema(ctx, typ); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return res, fmt.Errorf("revert type %s: %w", typ, err)
			}
		}
		res.Types++
		step("Removing types")
	}

	if err := e.manifests.DeleteManifest(ctx); err != nil {
		return res, fmt.Errorf("delete manifest: %w", err)
	}
	e.logger.Info("import: reverted",
		slog.Int("objects", res.Objects),
		slog.Int("assets", res.Assets),
		slog.Int("types", res.Types))
	return res, nil
}
