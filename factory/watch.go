package factory

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/goerr/v2"
	"github.com/warp/property-finder/lookup"
)

// Watch reloads the definitions file at path whenever it is written and
// hands the result to apply. It blocks until ctx is done. A file that
// fails to parse is logged and the previous tables stay in effect.
func Watch(ctx context.Context, path string, logger *slog.Logger, apply func(map[string]lookup.TableConfig)) error {
	if path == "" {
		return goerr.New("no table definitions file to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return goerr.Wrap(err, "failed to watch directory", goerr.V("dir", dir))
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			tables, err := LoadFile(path)
			if err != nil {
				logger.Warn("table definitions not reloaded", "path", path, "error", err)
				continue
			}
			apply(tables)
			logger.Info("table definitions reloaded", "path", path, "tables", Names(tables))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "path", path, "error", err)
		}
	}
}
