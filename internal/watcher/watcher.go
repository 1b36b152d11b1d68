// Package watcher re-extracts Python files as they change on disk.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mvp-joe/pydefs/internal/batch"
	"github.com/mvp-joe/pydefs/internal/discovery"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// Processor extracts a set of files.
type Processor interface {
	Process(ctx context.Context, paths []string) []batch.Result
}

// Options configures a Watcher.
type Options struct {
	// Roots are the directories (watched recursively) and files to watch.
	Roots []string

	Discovery *discovery.FileDiscovery
	Processor Processor

	// Debounce is the quiet period after the last event before changed
	// files are processed. Zero means DefaultDebounce.
	Debounce time.Duration

	// OnResults receives the results of every re-extraction, in path order.
	OnResults func([]batch.Result)
}

type root struct {
	path  string
	isDir bool
}

// Watcher watches roots and re-extracts changed files after a debounce.
type Watcher struct {
	watcher   *fsnotify.Watcher
	roots     []root
	discovery *discovery.FileDiscovery
	processor Processor
	debounce  time.Duration
	onResults func([]batch.Result)

	changed       map[string]bool
	debounceTimer *time.Timer
	timerMu       sync.Mutex
	cancel        context.CancelFunc
	stopOnce      sync.Once
	doneCh        chan struct{}
}

// New creates a Watcher and registers every root. Directories are watched
// recursively, skipping ignored subdirectories; explicit files are watched
// through their parent directory.
func New(opts Options) (*Watcher, error) {
	if opts.Discovery == nil || opts.Processor == nil {
		return nil, fmt.Errorf("watcher requires discovery and processor")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:   fsw,
		discovery: opts.Discovery,
		processor: opts.Processor,
		debounce:  opts.Debounce,
		onResults: opts.OnResults,
		changed:   make(map[string]bool),
		doneCh:    make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.onResults == nil {
		w.onResults = func([]batch.Result) {}
	}

	for _, path := range opts.Roots {
		info, err := os.Stat(path)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}

		clean := filepath.Clean(path)
		if info.IsDir() {
			w.roots = append(w.roots, root{path: clean, isDir: true})
			if err := w.addDirectoriesRecursively(clean, clean); err != nil {
				fsw.Close()
				return nil, err
			}
			continue
		}

		w.roots = append(w.roots, root{path: clean})
		if err := fsw.Add(filepath.Dir(clean)); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.watch(ctx)
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.Start(ctx)
	<-ctx.Done()
	return w.Stop()
}

// Stop stops watching and waits for an in-flight re-extraction to finish.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.doneCh
		} else {
			close(w.doneCh)
		}
		err = w.watcher.Close()
	})
	return err
}

// watch is the main event loop.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	processCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.stopDebounceTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Handle new directories - add them to watcher
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if r, ok := w.dirRootFor(event.Name); ok {
						if err := w.addDirectoriesRecursively(r.path, event.Name); err != nil {
							log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
						}
					}
					continue
				}
			}

			if !w.shouldProcessEvent(event) {
				continue
			}

			w.changed[filepath.Clean(event.Name)] = true
			w.resetDebounceTimer(processCh)

		case <-processCh:
			w.processChanged(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

// processChanged re-extracts the accumulated files and hands the results
// to the callback.
func (w *Watcher) processChanged(ctx context.Context) {
	if len(w.changed) == 0 {
		return
	}

	paths := make([]string, 0, len(w.changed))
	for path := range w.changed {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	w.changed = make(map[string]bool)

	log.Printf("Re-extracting %d changed file(s)...", len(paths))
	results := w.processor.Process(ctx, paths)
	if ctx.Err() != nil {
		return
	}
	w.onResults(results)
}

// shouldProcessEvent reports whether event names an included file that was
// written or created.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}

	name := filepath.Clean(event.Name)
	for _, r := range w.roots {
		if !r.isDir {
			if name == r.path {
				return true
			}
			continue
		}
		if relPath, ok := relativeTo(r.path, name); ok && relPath != "." && w.discovery.Matches(relPath) {
			return true
		}
	}
	return false
}

// dirRootFor returns the directory root containing path.
func (w *Watcher) dirRootFor(path string) (root, bool) {
	for _, r := range w.roots {
		if _, ok := relativeTo(r.path, path); ok && r.isDir {
			return r, true
		}
	}
	return root{}, false
}

// relativeTo returns path relative to dir, slash separated, when path lies
// inside dir.
func relativeTo(dir, path string) (string, bool) {
	relPath, err := filepath.Rel(dir, path)
	if err != nil {
		return "", false
	}
	relPath = filepath.ToSlash(relPath)
	if relPath == ".." || strings.HasPrefix(relPath, "../") {
		return "", false
	}
	return relPath, true
}

// resetDebounceTimer restarts the quiet period.
func (w *Watcher) resetDebounceTimer(processCh chan struct{}) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		select {
		case processCh <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopDebounceTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
}

// addDirectoriesRecursively adds dir and its non-ignored subdirectories,
// judging ignore patterns relative to rootDir.
func (w *Watcher) addDirectoriesRecursively(rootDir, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// If it's the root path, fail immediately
			if path == dir {
				return err
			}
			log.Printf("Warning: error accessing %s: %v", path, err)
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		relPath, ok := relativeTo(rootDir, path)
		if ok && relPath != "." && w.discovery.ShouldIgnore(relPath) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v", path, err)
			return nil // Continue anyway
		}
		return nil
	})
}
