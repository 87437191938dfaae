// watch.go contains the file watcher that re-runs the check on changes.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/allowuntil/internal/scanner"
)

// debounceDelay is how long the watcher waits after the last event before
// re-running the check, so an editor save burst triggers a single run.
const debounceDelay = 100 * time.Millisecond

// Watch re-runs the check whenever a Go source or manifest file changes
// and delivers each completed report to fn. It blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context, opts CheckOptions, fn func(*Report)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, root := range e.scanRoots() {
		if err := e.watchDirRecursive(watcher, root); err != nil {
			e.logger.Error("failed to watch directory", "path", root, "error", err)
		}
	}

	// First run before any change arrives.
	report, err := e.Check(ctx, opts)
	if err != nil {
		return err
	}
	fn(report)

	// Debounce timer
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// Watch new directories as they appear.
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}

			if !watchRelevant(event.Name) {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				e.logger.Debug("file changed, re-checking", "file", event.Name)

				report, err := e.Check(ctx, opts)
				if err != nil {
					e.logger.Error("check failed", "error", err)
					return
				}
				fn(report)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher error", "error", err)
		}
	}
}

// watchRelevant reports whether a change to name can affect gate results.
// Go source carries directives; YAML carries manifests.
func watchRelevant(name string) bool {
	switch filepath.Ext(name) {
	case ".go", ".yaml", ".yml":
		return true
	}
	return false
}

// watchDirRecursive adds a directory and all subdirectories to the watcher,
// skipping the same directories the scanner skips.
func (e *Engine) watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && scanner.SkipDir(d.Name(), e.cfg.Exclude) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
