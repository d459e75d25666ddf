package registry

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/litekit/litebridge/internal/database"
)

// Watcher evicts single-instance handles whose database file disappears
// underneath the registry. It watches the parent directories of tracked
// files (fsnotify cannot watch a deleted file directly) and subscribes to
// registry lifecycle events to keep the watch set in sync.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	files   map[string]struct{} // tracked database files
	dirs    map[string]int      // watched directory -> tracked file count
	running bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for r. It is inert until Start.
func NewWatcher(r *Registry) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		registry: r,
		watcher:  fsWatcher,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
		done:     make(chan struct{}),
	}, nil
}

// Publish implements EventSink: opened databases become tracked, closed,
// deleted and evicted ones are dropped.
func (w *Watcher) Publish(e Event) {
	if database.IsMemoryPath(e.Path) {
		return
	}
	switch e.Type {
	case EventOpened:
		w.track(e.Path)
	case EventClosed, EventDeleted, EventEvicted:
		w.untrack(e.Path)
	}
}

func (w *Watcher) track(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[path]; ok {
		return
	}
	w.files[path] = struct{}{}

	dir := filepath.Dir(path)
	w.dirs[dir]++
	if w.dirs[dir] == 1 {
		if err := w.watcher.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to watch database directory")
		}
	}
}

func (w *Watcher) untrack(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[path]; !ok {
		return
	}
	delete(w.files, path)

	dir := filepath.Dir(path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("Failed to unwatch database directory")
		}
	}
}

func (w *Watcher) tracked(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[path]
	return ok
}

// Start begins processing filesystem events.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.wg.Add(1)
	go w.eventLoop()
	log.Info().Msg("Database file watcher started")
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	w.watcher.Close()
	w.wg.Wait()
	log.Info().Msg("Database file watcher stopped")
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.tracked(event.Name) {
				continue
			}
			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Tracked database file removed")
			w.registry.EvictPath(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("File watcher error")
		}
	}
}
