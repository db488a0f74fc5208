// Package inbox watches a drop directory and imports every archive placed in it.
package inbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	doneDir   = "done"
	failedDir = "failed"
	settle    = 300 * time.Millisecond
)

// ImportFunc imports one archive.
type ImportFunc func(ctx context.Context, r io.ReaderAt, size int64) error

// EventCallback is called after an archive was processed.
// kind is one of "imported", "failed".
type EventCallback func(kind string, name string)

// Watch processes archives already present in dir, then starts an fsnotify
// watcher and imports each new .zip once writes to it have settled. Imported
// archives move to dir/done, rejected ones to dir/failed. It returns when
// ctx is cancelled.
func Watch(ctx context.Context, dir string, importFn ImportFunc, logger *slog.Logger, cb EventCallback) error {
	for _, sub := range []string{doneDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("inbox: create %s: %w", sub, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("inbox: started", slog.String("dir", dir))

	pending := make(map[string]struct{})
	existing, _ := filepath.Glob(filepath.Join(dir, "*"))
	for _, p := range existing {
		if isArchive(p) {
			pending[p] = struct{}{}
		}
	}

	// settleTimer debounces bursts of write events for the same archive.
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settle)
		}
	}
	if len(pending) > 0 {
		schedule()
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for p := range pending {
				delete(pending, p)
				process(ctx, dir, p, importFn, logger, cb)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isArchive(ev.Name) || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			pending[ev.Name] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

func isArchive(p string) bool {
	base := filepath.Base(p)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".zip")
}

// process imports the archive at p and moves it out of the inbox.
func process(ctx context.Context, dir, p string, importFn ImportFunc, logger *slog.Logger, cb EventCallback) {
	name := filepath.Base(p)
	err := importArchive(ctx, p, importFn)

	kind, dest := "imported", doneDir
	if err != nil {
		kind, dest = "failed", failedDir
		logger.Warn("inbox: import failed", slog.String("archive", name), slog.String("error", err.Error()))
	} else {
		logger.Info("inbox: imported", slog.String("archive", name))
	}

	target := filepath.Join(dir, dest, time.Now().UTC().Format("20060102T150405")+"_"+name)
	if mvErr := os.Rename(p, target); mvErr != nil {
		logger.Warn("inbox: move failed", slog.String("archive", name), slog.String("error", mvErr.Error()))
	}
	if cb != nil {
		cb(kind, name)
	}
}

func importArchive(ctx context.Context, p string, importFn ImportFunc) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return importFn(ctx, f, info.Size())
}
