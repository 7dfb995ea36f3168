package daplink

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"dapcheck/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// ErrRemountTimeout is returned when the drive does not go away and come
// back within the configured timeout.
var ErrRemountTimeout = errors.New("drive remount timed out")

// mountWatcher wakes waiters whenever the mount point changes. Changes are
// seen through fsnotify events on the parent directory and through a
// polling ticker that also covers platforms where fsnotify is unavailable.
type mountWatcher struct {
	path     string
	interval time.Duration
	fsw      *fsnotify.Watcher
}

func newMountWatcher(path string, interval time.Duration) *mountWatcher {
	w := &mountWatcher{path: filepath.Clean(path), interval: interval}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("DAPLink", "fsnotify not available, falling back to polling: %v", err)
		return w
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		logging.Warn("DAPLink", "Failed to watch %s, falling back to polling: %v", filepath.Dir(w.path), err)
		fsw.Close()
		return w
	}
	w.fsw = fsw
	return w
}

func (w *mountWatcher) Close() {
	if w.fsw == nil {
		return
	}
	if err := w.fsw.Close(); err != nil {
		logging.Warn("DAPLink", "Error closing fsnotify watcher: %v", err)
	}
	w.fsw = nil
}

// waitFor blocks until cond holds, ctx is done or deadline passes.
func (w *mountWatcher) waitFor(ctx context.Context, deadline time.Time, cond func() bool) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if cond() {
				return nil
			}
			return ErrRemountTimeout
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) == w.path {
				logging.Debug("DAPLink", "Mount point event %s", event.Op)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.Error("DAPLink", err, "fsnotify error")
		case <-ticker.C:
		}
	}
}
