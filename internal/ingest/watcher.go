package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/loader"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher ingests supported files created or written under a directory,
// and removes the documents of deleted files. Bursts of events for one
// file collapse into a single ingestion after Debounce.
type Watcher struct {
	pipeline *Pipeline
	dir      string
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	// OnReport, if set, receives each ingestion report.
	OnReport func(Report)

	mu      sync.Mutex
	closed  bool
	pending map[string]*time.Timer
	work    chan string
	wg      sync.WaitGroup
}

// NewWatcher watches dir and its subdirectories.
func NewWatcher(p *Pipeline, dir string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watcher{
		pipeline: p,
		dir:      abs,
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
		pending:  map[string]*time.Timer{},
		work:     make(chan string, 64),
	}
	if err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run processes events until ctx is done. It ingests every supported file
// already present before watching for changes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.wg.Add(1)
	go w.worker(ctx)
	defer func() {
		w.stopTimers()
		close(w.work)
		w.wg.Wait()
	}()

	initial := w.pipeline.Ingest(ctx, w.dir)
	w.report(initial)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("watching new directory", zap.String("path", path), zap.Error(err))
			}
			w.schedule(path)
			return
		}
		if loader.IsSupported(path) {
			w.schedule(path)
		}
	case event.Has(fsnotify.Write):
		if loader.IsSupported(path) {
			w.schedule(path)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if loader.IsSupported(path) {
			w.cancel(path)
			w.removeByPath(ctx, path)
		}
	}
}

// schedule (re)starts path's debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.pending, path)
		if w.closed {
			return
		}
		select {
		case w.work <- path:
		default:
			w.logger.Warn("ingest queue full, dropping event", zap.String("path", path))
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) worker(ctx context.Context) {
	defer w.wg.Done()
	for path := range w.work {
		if ctx.Err() != nil {
			continue
		}
		w.report(w.pipeline.Ingest(ctx, path))
	}
}

func (w *Watcher) removeByPath(ctx context.Context, path string) {
	entry, err := w.pipeline.catalog.FindByPath(path)
	if errors.Is(err, catalog.ErrNotFound) {
		return
	}
	if err != nil {
		w.logger.Warn("looking up removed file", zap.String("path", path), zap.Error(err))
		return
	}
	if err := w.pipeline.Remove(ctx, entry.SourceID); err != nil {
		w.logger.Warn("removing deleted file", zap.String("source_id", entry.SourceID), zap.Error(err))
	}
}

func (w *Watcher) report(r Report) {
	if len(r.Files) == 0 {
		return
	}
	if w.OnReport != nil {
		w.OnReport(r)
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}
