package gather

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions configures a live-rescan watch loop.
type WatchOptions struct {
	Debounce  time.Duration
	Recursive bool
}

// Watch re-runs AnalyzeDirectory(root) on every debounced filesystem change
// under root until ctx is cancelled, feeding results into sessionID. This is
// a supplemental mode beyond the base analyze_directory operation, using a
// debounced fsnotify watch loop to coalesce bursts of filesystem events into
// a single rescan.
func (g *Gatherer) Watch(ctx context.Context, sessionID, root string, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addDirsRecursive(watcher, root); err != nil {
		return err
	}

	if _, err := g.AnalyzeDirectory(ctx, sessionID, root, opts.Recursive); err != nil {
		g.logger.Warn("initial watch scan failed", "root", root, "error", err)
	}

	var mu sync.Mutex
	var timer *time.Timer
	rescan := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(opts.Debounce, func() {
			n, err := g.AnalyzeDirectory(ctx, sessionID, root, opts.Recursive)
			if err != nil {
				g.logger.Warn("watch rescan failed", "root", root, "error", err)
				return
			}
			g.logger.Info("watch rescan complete", "root", root, "files_analyzed", n)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = addDirsRecursive(watcher, event.Name)
					}
				}
				rescan()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.logger.Warn("watch error", "error", err)
		}
	}
}

func addDirsRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				slog.Default().Warn("watch: failed to add directory", "path", path, "error", addErr)
			}
		}
		return nil
	})
}
