package repomap

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// repoWatcher recursively watches a repository root and feeds Create/
// Modify/Remove events for tracked extensions into the owning Cache's
// pending-updates set. fsnotify only watches the directories it's told
// about, so new directories are added to the watch set as they appear.
type repoWatcher struct {
	cache  *Cache
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// Watch starts the file watcher. Calling Watch twice is a no-op.
func (c *Cache) Watch(ctx context.Context, logger *slog.Logger) error {
	c.mu.Lock()
	if c.watcher != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &repoWatcher{cache: c, fsw: fsw, cancel: cancel, logger: logger}

	if err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	}); err != nil {
		_ = fsw.Close()
		cancel()
		return err
	}

	c.mu.Lock()
	c.watcher = w
	c.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// StopWatching shuts down the watcher, if one is running.
func (c *Cache) StopWatching() {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	if w == nil {
		return
	}
	w.cancel()
	_ = w.fsw.Close()
	w.wg.Wait()
}

// IsWatching reports whether a watcher is currently active.
func (c *Cache) IsWatching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watcher != nil
}

func (w *repoWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("repomap watch error", "error", err)
		}
	}
}

func (w *repoWatcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.cache.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		if w.cache.shouldTrack(rel) {
			w.cache.recordDeleted(rel)
		}
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
			return
		}
		if w.cache.shouldTrack(rel) {
			w.cache.recordModified(rel)
		}
	}
}
