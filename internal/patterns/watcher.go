package patterns

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch loads path into r and reloads it whenever the detector rewrites the
// file, until ctx is cancelled. onChange (if non-nil) runs after each
// successful reload that changed the set.
//
// The parent directory is watched rather than the file, so atomic
// replace-by-rename from the detector is picked up. Bursts of events are
// debounced into one reload. An invalid file is logged and skipped; the
// registry keeps serving the last good set.
func Watch(ctx context.Context, r *Registry, path string, logger *slog.Logger, onChange func()) error {
	reload := func() {
		changed, err := r.LoadFile(path)
		if err != nil {
			logger.Warn("patterns: reload failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		if changed {
			logger.Info("patterns: reloaded", slog.String("path", path), slog.Int("count", r.Len()))
			if onChange != nil {
				onChange()
			}
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	reload()

	logger.Info("patterns: watcher started", slog.String("path", path))

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("patterns: watcher stopped")
			return nil

		case <-debounceCh:
			reload()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
				debounceCh = debounce.C
			} else {
				debounce.Reset(reloadDebounce)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("patterns: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
