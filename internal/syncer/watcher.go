package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/getleo/cadsync/leo"
)

// Watcher monitors the vault directory and translates filesystem
// notifications into lifecycle events for the dispatcher. Rapid write
// bursts to the same file collapse into a single event.
type Watcher struct {
	dispatcher *Dispatcher
	root       string
	debounce   time.Duration
	logger     *slog.Logger
	watcher    *fsnotify.Watcher
}

// NewWatcher creates a watcher over root feeding the given dispatcher.
func NewWatcher(dispatcher *Dispatcher, root string, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		dispatcher: dispatcher,
		root:       root,
		debounce:   debounce,
		logger:     logger,
	}
}

// pendingChange distinguishes a file first seen (added) from one
// modified in place (checked in) when the debounce window flushes.
type pendingChange struct {
	seenAt  time.Time
	created bool
}

// Watch blocks until the context is cancelled, dispatching events as the
// debounce window flushes them. Directories are watched recursively,
// including ones created while running.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.watcher = watcher
	defer watcher.Close()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching vault dir: %w", err)
	}

	w.logger.Info("file watcher started", slog.String("dir", w.root))

	pending := make(map[string]pendingChange)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}
			if w.shouldIgnore(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				// A new directory needs its own watches before files
				// created inside it produce events.
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.addRecursive(event.Name); err != nil {
							w.logger.Warn("watching new directory failed",
								slog.String("path", event.Name),
								slog.String("error", err.Error()),
							)
						}
						continue
					}
				}

				if !leo.Processable(event.Name) {
					continue
				}

				change := pending[event.Name]
				change.seenAt = time.Now()
				change.created = change.created || event.Has(fsnotify.Create)
				pending[event.Name] = change
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// Renames fire Remove on the old path; the new path
				// arrives as a separate Create.
				_, wasPending := pending[event.Name]
				delete(pending, event.Name)
				_ = watcher.Remove(event.Name)

				if !leo.Processable(event.Name) {
					continue
				}
				// A file that appeared and vanished within one window
				// never reached the server; nothing to delete.
				if wasPending {
					continue
				}
				w.dispatcher.Handle(ctx, FileDeleted{Path: event.Name})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			now := time.Now()
			for path, change := range pending {
				if now.Sub(change.seenAt) < w.debounce {
					continue
				}
				delete(pending, path)

				if _, err := os.Stat(path); err != nil {
					continue
				}
				if change.created {
					w.dispatcher.Handle(ctx, FileAdded{Path: path})
				} else {
					w.dispatcher.Handle(ctx, FileCheckedIn{Path: path})
				}
			}
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if w.shouldIgnore(path) {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && path != w.root {
		return true
	}
	// Editor temp files and CAD lock files.
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return true
	}
	if strings.HasPrefix(base, "~$") {
		return true
	}
	return false
}
