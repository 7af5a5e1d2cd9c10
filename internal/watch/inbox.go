// Package watch runs the pipeline on CV files dropped into an inbox directory.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"recruitflow/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// BatchFunc handles one batch of new files, sorted by path.
type BatchFunc func(paths []string)

// InboxWatcher collects files created or written in a directory and hands
// them over in batches once the directory has been quiet for the debounce
// delay. A file is handed over again only when its modification time changes.
type InboxWatcher struct {
	mu sync.Mutex

	dir    string
	accept func(name string) bool

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	pending map[string]struct{}
	handled map[string]time.Time

	stopChan  chan struct{}
	batchChan chan struct{}
	done      chan struct{}

	onBatch BatchFunc
	logger  *errors.Logger

	running bool
}

// NewInboxWatcher creates a watcher for dir. accept filters file names; nil accepts all.
func NewInboxWatcher(dir string, debounceDelay time.Duration, accept func(name string) bool, onBatch BatchFunc, logger *errors.Logger) (*InboxWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, fmt.Sprintf("cannot watch %s", dir), err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, fmt.Sprintf("%s is not a directory", dir), nil)
	}
	if debounceDelay <= 0 {
		debounceDelay = 2 * time.Second
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	return &InboxWatcher{
		dir:           dir,
		accept:        accept,
		debounceDelay: debounceDelay,
		pending:       make(map[string]struct{}),
		handled:       make(map[string]time.Time),
		batchChan:     make(chan struct{}, 1),
		onBatch:       onBatch,
		logger:        logger,
	}, nil
}

// Start begins watching. When includeExisting is set, files already in the
// directory form the first batch.
func (w *InboxWatcher) Start(includeExisting bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("inbox watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	w.fsWatcher = watcher

	existing, err := w.scan()
	if err != nil {
		watcher.Close()
		return err
	}
	for _, path := range existing {
		if includeExisting {
			w.pending[path] = struct{}{}
		} else if stat, err := os.Stat(path); err == nil {
			w.handled[path] = stat.ModTime()
		}
	}

	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	go w.watchLoop()

	if includeExisting && len(existing) > 0 {
		w.scheduleLocked()
	}
	w.logger.Info("Inbox watcher started",
		"directory", w.dir,
		"existing_files", len(existing),
		"debounce_delay", w.debounceDelay)
	return nil
}

// Stop stops watching and waits for a batch in progress to finish.
func (w *InboxWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	err := w.fsWatcher.Close()
	w.running = false
	done := w.done
	w.mu.Unlock()

	<-done
	if err != nil {
		w.logger.LogError(err, "Failed to close file system watcher")
		return err
	}
	w.logger.Info("Inbox watcher stopped", "directory", w.dir)
	return nil
}

// IsRunning returns whether the watcher is currently running
func (w *InboxWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *InboxWatcher) scan() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", w.dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && w.accept(entry.Name()) {
			paths = append(paths, filepath.Join(w.dir, entry.Name()))
		}
	}
	return paths, nil
}

func (w *InboxWatcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.mu.Lock()
				w.pending[event.Name] = struct{}{}
				w.scheduleLocked()
				w.mu.Unlock()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "File watcher error", "directory", w.dir)

		case <-w.batchChan:
			if batch := w.takeBatch(); len(batch) > 0 {
				w.logger.Info("New files in inbox", "directory", w.dir, "files", len(batch))
				w.onBatch(batch)
			}

		case <-w.stopChan:
			return
		}
	}
}

// shouldProcessEvent accepts creates, writes and renames of accepted files.
func (w *InboxWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return w.accept(filepath.Base(event.Name))
}

// scheduleLocked resets the debounce timer. Callers hold mu.
func (w *InboxWatcher) scheduleLocked() {
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.batchChan <- struct{}{}:
		default:
		}
	})
}

// takeBatch drains the pending set, keeping regular files that are new or
// modified since they were last handed over.
func (w *InboxWatcher) takeBatch() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch := make([]string, 0, len(w.pending))
	for path := range w.pending {
		delete(w.pending, path)

		stat, err := os.Stat(path)
		if err != nil || !stat.Mode().IsRegular() {
			continue
		}
		if last, seen := w.handled[path]; seen && !stat.ModTime().After(last) {
			continue
		}
		w.handled[path] = stat.ModTime()
		batch = append(batch, path)
	}
	slices.Sort(batch)
	return batch
}
