package histcache

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Event is a single filesystem change notification. Only the affected path
// is carried; the cache performs a coarse-grained refresh regardless of
// what changed.
type Event struct {
	Path string
}

// Watcher delivers filesystem change notifications for a watched directory
// subtree. Implementations may deliver duplicates and bursts; the refresh
// scheduler debounces them into a single reload.
//
// Both channels are closed when the watcher is closed.
type Watcher interface {
	// Events returns the channel of change notifications.
	Events() <-chan Event

	// Errors returns the channel of watch errors. Errors are diagnostic
	// only and do not stop the watcher.
	Errors() <-chan error

	// Close releases the watch. Closing an already-closed watcher is a
	// no-op.
	Close() error
}

// WatcherFactory creates a Watcher scoped to the directory subtree rooted
// at path. The Service calls it with the repository's control-metadata
// directory (<root>/.git) on every attach.
type WatcherFactory func(path string) (Watcher, error)

// NewFSWatcher is the default WatcherFactory, backed by fsnotify. It
// watches the given directory and, when present, its refs subdirectories,
// which is where branch updates, commits, and checkouts surface as file
// changes.
//
// fsnotify does not watch recursively, so changes in deeper subtrees (for
// example pack directories) are observed indirectly through the files git
// rewrites at the top level (HEAD, index, packed-refs).
func NewFSWatcher(path string) (Watcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := inner.Add(path); err != nil {
		_ = inner.Close()
		return nil, err
	}
	for _, sub := range []string{"refs", "refs/heads", "refs/remotes", "refs/tags"} {
		dir := filepath.Join(path, sub)
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			// Best effort: the top-level watch alone is enough to observe
			// most mutations.
			_ = inner.Add(dir)
		}
	}

	w := &fsWatcher{
		inner:  inner,
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
	}
	go w.pump()
	return w, nil
}

type fsWatcher struct {
	inner  *fsnotify.Watcher
	events chan Event
	errs   chan error
	once   sync.Once
}

func (w *fsWatcher) Events() <-chan Event { return w.events }

func (w *fsWatcher) Errors() <-chan error { return w.errs }

func (w *fsWatcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.inner.Close()
	})
	return err
}

// pump forwards fsnotify notifications until the underlying watcher is
// closed, then closes both outbound channels.
func (w *fsWatcher) pump() {
	defer close(w.events)
	defer close(w.errs)

	for {
		select {
		case ev, ok := <-w.inner.Events:
			if !ok {
				return
			}
			select {
			case w.events <- Event{Path: ev.Name}:
			default:
				// Buffer full: the pending notifications already cover
				// this burst, and the debounce collapses them anyway.
			}
		case err, ok := <-w.inner.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}
