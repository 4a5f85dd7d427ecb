package watch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/dicomindex/internal/application"
	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ImportWatcher watches an incoming directory and feeds newly dropped files
// into the index. Writes to a file are debounced so a file still being
// copied in is not imported half-written.
type ImportWatcher struct {
	service *application.IndexService
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger
	opts    domain.InsertOptions

	debounceWindow time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  map[string]*time.Timer
	watching bool
}

func NewImportWatcher(service *application.IndexService, opts domain.InsertOptions, log *zap.SugaredLogger) (*ImportWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ImportWatcher{
		service:        service,
		watcher:        fsWatcher,
		log:            log,
		opts:           opts,
		debounceWindow: 500 * time.Millisecond,
		ctx:            ctx,
		cancel:         cancel,
		pending:        make(map[string]*time.Timer),
	}, nil
}

// SetDebounceWindow adjusts the quiet period a file must reach before it is
// imported. Call before Watch.
func (w *ImportWatcher) SetDebounceWindow(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceWindow = d
}

// Watch starts watching dir. Only one directory per watcher.
func (w *ImportWatcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return fmt.Errorf("already watching")
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watching = true

	go w.watchLoop()
	return nil
}

func (w *ImportWatcher) watchLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("watcher error", "error", err)
		}
	}
}

// schedule (re)arms the per-file debounce timer.
func (w *ImportWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.importFile(path)
	})
}

func (w *ImportWatcher) importFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	err = w.service.Insert(w.ctx, domain.ObjectSource{Path: path}, w.opts)
	if err != nil {
		w.log.Warnw("import failed", "file", path, "error", err)
		return
	}
	w.log.Infow("imported", "file", path)
}

// Close stops the watch loop and cancels pending imports.
func (w *ImportWatcher) Close() error {
	w.cancel()
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
