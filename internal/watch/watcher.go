// Package watch re-runs an action when fragments in a directory change.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/callscope/pkg/config"
)

// DefaultDebounce is how long a fragment must stay unchanged before the
// callback runs.
const DefaultDebounce = 500 * time.Millisecond

// Callback receives the fragment paths changed since the previous run,
// sorted.
type Callback func(ctx context.Context, changed []string)

// Watcher monitors a fragment directory. The directory is watched
// non-recursively, like fragment loading.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	pattern   string
	exclude   map[string]bool
	debounce  time.Duration
	callback  Callback
	out       io.Writer

	// run serializes callbacks; mu guards pending.
	run     sync.Mutex
	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher for dir using the input settings of cfg.
func NewWatcher(dir string, cfg *config.Config, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	exclude := make(map[string]bool)
	for _, name := range cfg.ExcludedNames() {
		exclude[name] = true
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		pattern:   cfg.Input.Pattern,
		exclude:   exclude,
		debounce:  debounce,
		out:       os.Stderr,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function to call when fragments change.
func (w *Watcher) SetCallback(cb Callback) {
	w.callback = cb
}

// SetOutput redirects status messages, stderr by default.
func (w *Watcher) SetOutput(out io.Writer) {
	w.out = out
}

// Start watches until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	color.New(color.FgCyan).Fprintf(w.out, "Watching %s for fragment changes...\n", w.dir)
	color.New(color.FgCyan).Fprintln(w.out, "Press Ctrl+C to stop")

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			color.New(color.FgRed).Fprintf(w.out, "Watch error: %v\n", err)
		}
	}
}

// handleEvent records a change to a fragment file. Removals and renames
// count: the fragment set changed.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.isFragment(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) isFragment(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	name := filepath.Base(path)
	if w.exclude[name] {
		return false
	}
	ok, err := filepath.Match(w.pattern, name)
	return err == nil && ok
}

// processDebounced processes pending changes after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending runs the callback once for every fragment that has been
// stable for the debounce period. A burst of writes yields one run.
func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if len(ready) == 0 || w.callback == nil {
		return
	}
	sort.Strings(ready)

	w.run.Lock()
	defer w.run.Unlock()

	names := make([]string, len(ready))
	for i, p := range ready {
		names[i] = filepath.Base(p)
	}
	color.New(color.FgYellow).Fprintf(w.out, "\nChanged: %v\n", names)
	w.callback(ctx, ready)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedPaths returns the watched directories.
func (w *Watcher) WatchedPaths() []string {
	return w.fsWatcher.WatchList()
}
