package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// excludedDirs are never watched or counted.
var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"vendor":       true,
}

// scratchSuffixes mark editor temp files whose churn should not reload
// the dashboard.
var scratchSuffixes = []string{"~", ".swp", ".swx", ".tmp", ".crdownload"}

// ChangeCallback is called, debounced, after files under a watched
// directory change.
type ChangeCallback func(dir string, assets int)

// Watcher monitors dashboard asset directories so open tabs can be
// reloaded when the assets change.
type Watcher struct {
	mu       sync.RWMutex
	watchers map[string]*dirWatcher // absolute dir → watcher
	callback ChangeCallback
	debounce time.Duration
	logger   *slog.Logger
}

type dirWatcher struct {
	dir       string
	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a new file system watcher.
func New(callback ChangeCallback, opts ...Option) *Watcher {
	w := &Watcher{
		watchers: make(map[string]*dirWatcher),
		callback: callback,
		debounce: defaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts watching dir and its subdirectories. Watching an already
// watched directory is a no-op.
func (w *Watcher) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", dir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watchers[abs]; ok {
		return nil
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Add directories recursively.
	if err := addDirsRecursive(fsW, abs); err != nil {
		fsW.Close()
		return err
	}

	dw := &dirWatcher{
		dir:       abs,
		fsWatcher: fsW,
		cancel:    make(chan struct{}),
	}
	w.watchers[abs] = dw

	go w.watchLoop(dw)

	w.logger.Info("watching dashboard assets", "dir", abs)
	return nil
}

// Unwatch stops watching dir.
func (w *Watcher) Unwatch(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}

	w.mu.Lock()
	dw, ok := w.watchers[abs]
	if ok {
		delete(w.watchers, abs)
	}
	w.mu.Unlock()

	if ok {
		close(dw.cancel)
		dw.fsWatcher.Close()
	}
}

// watchLoop processes fsnotify events with debouncing.
func (w *Watcher) watchLoop(dw *dirWatcher) {
	var timer *time.Timer

	for {
		select {
		case <-dw.cancel:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-dw.fsWatcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}

			// If a new directory is created, watch it too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					base := filepath.Base(event.Name)
					if !excludedDirs[base] && !isHidden(base) {
						dw.fsWatcher.Add(event.Name)
					}
				}
			}

			// Debounce: reset timer on each event.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.notify(dw)
			})

		case err, ok := <-dw.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("asset watcher error", "dir", dw.dir, "err", err)
		}
	}
}

func (w *Watcher) notify(dw *dirWatcher) {
	select {
	case <-dw.cancel:
		return
	default:
	}

	count := CountAssets(dw.dir)
	w.logger.Debug("dashboard assets changed", "dir", dw.dir, "assets", count)
	if w.callback != nil {
		w.callback(dw.dir, count)
	}
}

// relevant filters out permission-only changes and editor scratch files.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	return !isHidden(base) && !isScratchFile(base)
}

// CountAssets counts all non-excluded, non-hidden files in a directory.
func CountAssets(dir string) int {
	count := 0
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths.
		}

		name := d.Name()

		if d.IsDir() {
			if path == dir {
				return nil
			}
			if excludedDirs[name] || isHidden(name) {
				return filepath.SkipDir
			}
			return nil
		}

		if isHidden(name) || isScratchFile(name) {
			return nil
		}

		count++
		return nil
	})
	return count
}

// Shutdown stops all watchers.
func (w *Watcher) Shutdown() {
	w.mu.Lock()
	dirs := make([]string, 0, len(w.watchers))
	for dir := range w.watchers {
		dirs = append(dirs, dir)
	}
	w.mu.Unlock()

	for _, dir := range dirs {
		w.Unwatch(dir)
	}
}

// addDirsRecursive adds a directory and its subdirectories to an fsnotify watcher.
func addDirsRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		name := d.Name()
		if path != dir && (excludedDirs[name] || isHidden(name)) {
			return filepath.SkipDir
		}

		return w.Add(path)
	})
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

func isScratchFile(name string) bool {
	for _, suffix := range scratchSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
