package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// EventCallback is called after a watcher-driven reload rewrote the index.
type EventCallback func(checksum string)

// Watch starts an fsnotify watcher on the directory holding exportPath and
// reloads the index whenever the export file is written or replaced, until
// ctx is cancelled. It calls cb (if non-nil) after each reload that changed
// the index.
//
// The directory is watched rather than the file because the export is
// replaced by rename, which would orphan a watch on the old inode. Bursts of
// events are debounced into a single reload.
func Watch(ctx context.Context, db *DB, exportPath string, logger *slog.Logger, cb EventCallback) error {
	abs, err := filepath.Abs(exportPath)
	if err != nil {
		return fmt.Errorf("watcher: resolve export path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("watcher: create export dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("export", abs))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(reloadDebounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			changed, loadErr := Load(db, abs, logger)
			if loadErr != nil {
				logger.Warn("watcher: reload failed", slog.String("error", loadErr.Error()))
				continue
			}
			if !changed {
				continue
			}
			cs, _ := db.Checksum()
			logger.Debug("watcher: reloaded", slog.String("checksum", cs))
			if cb != nil {
				cb(cs)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
