// Package watcher watches the corpus locations with fsnotify and fires a debounced callback
// when the FAQ table or a policy document changes.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher calls onChange once per burst of changes to the corpus.
type Watcher struct {
	faqPath    string
	docsDir    string
	extensions []string
	onChange   func()
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	timer      *time.Timer
	watched    []string
	done       chan struct{}
	started    bool
	stopOnce   sync.Once
	logger     *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watch events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the corpus must be quiet before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for the FAQ table at faqPath and the documents in docsDir.
// Either may be empty. extensions filter document files (empty = all).
func NewWatcher(faqPath, docsDir string, extensions []string, onChange func(), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		extensions: extensions,
		onChange:   onChange,
		debounce:   defaultDebounce,
		done:       make(chan struct{}),
		logger:     zap.NewNop(),
	}
	if faqPath != "" {
		w.faqPath = absClean(faqPath)
	}
	if docsDir != "" {
		w.docsDir = absClean(docsDir)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called. Locations that
// do not exist yet are skipped; the FAQ table is watched through its directory so that
// editors replacing the file are seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true

	var dirs []string
	if w.faqPath != "" {
		dirs = append(dirs, filepath.Dir(w.faqPath))
	}
	if w.docsDir != "" {
		dirs = append(dirs, w.docsDir)
	}
	for _, dir := range dirs {
		if !isDir(dir) || containsPath(w.watched, dir) {
			w.logger.Debug("watcher skipping location", zap.String("path", dir))
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.watched = nil
			w.mu.Unlock()
			return err
		}
		w.watched = append(w.watched, dir)
	}
	w.logger.Debug("watcher starting", zap.Strings("dirs", w.watched))
	w.mu.Unlock()
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || !w.relevant(ev.Name) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.schedule()
}

// relevant reports whether path is the FAQ table or a document file in the documents directory.
func (w *Watcher) relevant(path string) bool {
	path = filepath.Clean(path)
	if w.faqPath != "" && path == w.faqPath {
		return true
	}
	if w.docsDir == "" || filepath.Dir(path) != w.docsDir {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		eNorm := strings.TrimPrefix(strings.ToLower(e), ".")
		extNorm := strings.TrimPrefix(strings.ToLower(ext), ".")
		if eNorm == extNorm {
			return true
		}
	}
	return false
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		started := w.started
		w.mu.Unlock()
		if !started {
			return
		}
		w.logger.Debug("watcher corpus changed (debounced)")
		if w.onChange != nil {
			w.onChange()
		}
	})
}

// Watched returns the directories currently being watched.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watched...)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.watched = nil
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

func absClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func containsPath(paths []string, p string) bool {
	for _, x := range paths {
		if x == p {
			return true
		}
	}
	return false
}
