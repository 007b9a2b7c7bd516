package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// fileEvent is the transport-neutral shape of a filesystem event, so
// classification stays testable without fsnotify.
type fileEvent struct {
	name    string // absolute path
	written bool
	removed bool
}

type watchWorker struct {
	*worker.BaseWorker
	mirror    *Mirror
	events    chan<- Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(m *Mirror, events chan<- Event) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("attachments-watcher"),
		mirror:     m,
		events:     events,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.watchDirs(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.mirror.config.Debounce)
	w.mirror.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// watchDirs registers the mirror directory and every non-ignored
// subdirectory with the watcher.
func (w *watchWorker) watchDirs(watcher *fsnotify.Watcher) error {
	dir := w.mirror.config.Dir
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.mirror.ignoredAbs(p) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

// handleEvent filters, debounces and eventually applies one fsnotify
// event.
func (w *watchWorker) handleEvent(ctx context.Context, event fsnotify.Event) {
	if logger := w.mirror.config.Logger; logger != nil {
		logger.Debug("event received", "name", event.Name)
	}

	// New directories join the watch so nested files keep arriving.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.mirror.ignoredAbs(event.Name) {
				_ = w.watcher.Add(event.Name)
			}
			return
		}
	}

	change, ok := w.mirror.classify(fileEvent{
		name:    event.Name,
		written: event.Has(fsnotify.Create) || event.Has(fsnotify.Write),
		removed: event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename),
	})
	if !ok {
		return
	}

	w.debouncer.add(change.name, func() {
		defer func() {
			// The events channel may close while the worker shuts down.
			_ = recover()
		}()
		e, applied := w.mirror.applyChange(ctx, change)
		if !applied {
			return
		}
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

// handleWatcherError processes errors from the fsnotify watcher.
func (w *watchWorker) handleWatcherError(err error) {
	if logger := w.mirror.config.Logger; logger != nil {
		logger.Error("fsnotify error", "error", err)
	}
	if w.mirror.config.ErrorHandler != nil {
		w.mirror.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if logger := w.mirror.config.Logger; logger != nil {
				if logger.Enabled(ctx, slog.LevelDebug) {
					logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
				} else {
					logger.Error("watcher panic", "error", panicErr)
				}
			}
		}
	}()
	defer w.mirror.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.eventLoop(ctx)

	// Wait for in-flight debounced pushes before the channel owner
	// tears down.
	w.debouncer.stopAndWait(5 * time.Second)

	return err
}

// eventLoop is the core select loop over filesystem and watcher error
// events.
func (w *watchWorker) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
