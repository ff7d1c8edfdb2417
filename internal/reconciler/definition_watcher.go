package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fleetsync/internal/config"
	"fleetsync/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits for further filesystem
// events before signalling a change. Editors typically produce bursts of
// writes per save.
const defaultDebounce = 500 * time.Millisecond

// DefinitionWatcher watches a state directory (the definition document
// plus its asset subdirectories) and signals when any of it changes.
// It drives the plan command's --watch mode.
type DefinitionWatcher struct {
	mu sync.Mutex

	// stateDir is the root of the watched state directory.
	stateDir string

	// debounce is how long to wait for additional changes.
	debounce time.Duration

	// watcher is the fsnotify watcher instance
	watcher *fsnotify.Watcher

	// timer is the pending debounce timer, nil when idle.
	timer *time.Timer

	running bool
}

// NewDefinitionWatcher creates a watcher over the given state directory.
// A zero debounce selects the default.
func NewDefinitionWatcher(stateDir string, debounce time.Duration) *DefinitionWatcher {
	if debounce == 0 {
		debounce = defaultDebounce
	}
	return &DefinitionWatcher{
		stateDir: stateDir,
		debounce: debounce,
	}
}

// Start begins watching and sends one signal per debounced batch of
// changes until the context is cancelled or Stop is called.
func (w *DefinitionWatcher) Start(ctx context.Context, changes chan<- struct{}) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.watchDirs() {
		if err := watcher.Add(dir); err != nil {
			logging.Warn("DefinitionWatcher", "Could not watch %s: %v", dir, err)
			// Continue with the other directories
		}
	}

	go w.processEvents(ctx, changes)

	logging.Info("DefinitionWatcher", "Watching %s for definition changes", w.stateDir)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *DefinitionWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	return w.watcher.Close()
}

// watchDirs returns the state directory plus the asset subdirectories
// that exist.
func (w *DefinitionWatcher) watchDirs() []string {
	dirs := []string{w.stateDir}
	for _, sub := range []string{
		config.ComponentTemplatesDirName,
		config.PipelinesDirName,
		config.FragmentsDirName,
	} {
		dir := filepath.Join(w.stateDir, sub)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// relevant filters out editor noise: only the definition document and
// JSON asset files matter.
func relevant(path string) bool {
	base := filepath.Base(path)
	if base == config.DefinitionFileName {
		return true
	}
	return strings.HasSuffix(base, ".json")
}

// processEvents consumes fsnotify events, debounces them, and forwards
// one signal per batch.
func (w *DefinitionWatcher) processEvents(ctx context.Context, changes chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("DefinitionWatcher", "Change detected: %s (%s)", event.Name, event.Op)
			w.scheduleSignal(changes)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("DefinitionWatcher", "Watch error: %v", err)
		}
	}
}

// scheduleSignal (re)starts the debounce timer; when it fires, one change
// signal is delivered.
func (w *DefinitionWatcher) scheduleSignal(changes chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case changes <- struct{}{}:
		default:
			// A signal is already pending; collapsing bursts is the point.
		}
	})
}
