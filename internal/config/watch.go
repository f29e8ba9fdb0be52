package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// debounceWindow coalesces bursts of filesystem events from a single save
// (many editors write-then-rename) into one reload.
const debounceWindow = 200 * time.Millisecond

// Watcher hot-reloads the settings file at path, publishing every
// successfully validated snapshot on Snapshots(). An invalid reload is
// logged and discarded; the previously published snapshot remains live
// (spec §1: "hot-reloaded without restart").
type Watcher struct {
	path      string
	log       *zap.SugaredLogger
	snapshots chan Settings
}

// NewWatcher loads the initial settings synchronously, then returns a
// Watcher ready to be started with Run.
func NewWatcher(path string, log *zap.SugaredLogger) (*Watcher, Settings, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, Settings{}, err
	}
	return &Watcher{path: path, log: log, snapshots: make(chan Settings, 1)}, initial, nil
}

// Snapshots returns the channel of successfully (re)validated settings.
// The initial settings returned by NewWatcher are not replayed here.
func (w *Watcher) Snapshots() <-chan Settings { return w.snapshots }

// Run watches the settings file for changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating filesystem watcher")
	}
	defer fsw.Close()
	if err := fsw.Add(w.path); err != nil {
		return errors.Wrapf(err, "watching %s", w.path)
	}

	var debounce *time.Timer
	reload := func() {
		s, err := Load(w.path)
		if err != nil {
			w.log.Warnw("settings reload failed, keeping previous settings live", "path", w.path, "error", err)
			return
		}
		select {
		case w.snapshots <- s:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, reload)
			// Editors that rename-over-write break the inode being watched;
			// re-adding is a no-op if the path already exists under watch.
			_ = fsw.Add(w.path)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("settings watcher error", "error", err)
		}
	}
}
