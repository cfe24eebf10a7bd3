// Package watch reports changes to loaded model artifacts on disk. Loaded
// artifacts are never replaced; a change only means the running process no
// longer matches the files and needs a restart.
package watch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Change describes one filesystem event on a watched artifact.
type Change struct {
	Path string
	Op   string
}

type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	logger   *zap.Logger
	onChange func(Change)
}

// New watches the parent directories of paths. Watching directories rather
// than files keeps working across editors and tools that replace files by
// rename.
func New(paths []string, logger *zap.Logger, onChange func(Change)) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(paths)),
		logger:   logger,
		onChange: onChange,
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run delivers changes until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil || !w.files[abs] {
		return
	}
	change := Change{Path: abs, Op: event.Op.String()}
	artifactChanges.Inc()
	w.logger.Warn("model artifact changed on disk; restart to load it",
		zap.String("path", change.Path), zap.String("op", change.Op))
	if w.onChange != nil {
		w.onChange(change)
	}
}
