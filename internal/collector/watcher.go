package collector

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports write activity on a transcript file. It watches the parent
// directory because editors and capture tools often replace the file rather
// than writing it in place.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	events  chan struct{}
	logger  *slog.Logger
}

func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:    path,
		watcher: fsw,
		events:  make(chan struct{}, 1),
		logger:  logger,
	}, nil
}

// Events signals once per observed change to the transcript file. The
// channel has capacity one; coalesced signals are fine because the scheduler
// debounces anyway.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Run pumps fsnotify events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("transcript watcher error", "error", err)
		}
	}
}
