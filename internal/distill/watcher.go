package distill

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"metis/internal/logging"
)

// CorpusWatcher watches a corpus directory and re-runs distillation when
// files change. Changes are debounced so rapid saves trigger one refresh.
type CorpusWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	query       string
	distiller   *Distiller
	maxChunk    int
	debounceDur time.Duration
	dirty       bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	// Results sends each re-distillation; the consumer owns draining it.
	Results chan *Distillation
}

// NewCorpusWatcher creates a watcher over dir for the given query.
func NewCorpusWatcher(dir, query string, d *Distiller, maxChunkBytes int) (*CorpusWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &CorpusWatcher{
		watcher:     watcher,
		dir:         dir,
		query:       query,
		distiller:   d,
		maxChunk:    maxChunkBytes,
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		Results:     make(chan *Distillation, 1),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (cw *CorpusWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil // Already running
	}
	cw.running = true
	cw.mu.Unlock()

	if err := cw.watcher.Add(cw.dir); err != nil {
		cw.mu.Lock()
		cw.running = false
		cw.mu.Unlock()
		cw.watcher.Close()
		return err
	}
	logging.Distill("watching corpus directory: %s", cw.dir)

	go cw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (cw *CorpusWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh

	if err := cw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryDistill).Error("corpus watcher close: %v", err)
	}
}

// run is the main event loop for the watcher.
func (cw *CorpusWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)
	defer close(cw.Results)

	ticker := time.NewTicker(cw.debounceDur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !corpusExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue // Ignore chmod, etc.
			}
			cw.mu.Lock()
			cw.dirty = true
			cw.mu.Unlock()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryDistill).Error("corpus watcher: %v", err)

		case <-ticker.C:
			cw.mu.Lock()
			dirty := cw.dirty
			cw.dirty = false
			cw.mu.Unlock()
			if !dirty {
				continue
			}

			corpus, err := LoadCorpusDir(cw.dir, cw.maxChunk)
			if err != nil {
				logging.Get(logging.CategoryDistill).Error("corpus reload: %v", err)
				continue
			}
			result, err := cw.distiller.Distill(ctx, corpus, cw.query)
			if err != nil {
				logging.Get(logging.CategoryDistill).Error("re-distill: %v", err)
				continue
			}

			select {
			case cw.Results <- result:
			default:
				// Consumer is behind; leave the flag set so the next tick retries.
				cw.mu.Lock()
				cw.dirty = true
				cw.mu.Unlock()
			}
		}
	}
}
