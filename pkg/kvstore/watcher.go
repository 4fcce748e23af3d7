package kvstore

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes to a store file made by other processes. It watches the
// containing directory, so sidecar files like the SQLite WAL are picked up too. Bursts
// of events are coalesced into one callback per debounce interval.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewWatcher(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "could not create file watcher")
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, "could not watch %s", filepath.Dir(path))
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		watcher:  fw,
	}, nil
}

func (w *Watcher) matches(name string) bool {
	return strings.HasPrefix(filepath.Base(name), filepath.Base(w.path))
}

// Run processes events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Trace().Str("file", event.Name).Str("op", event.Op.String()).Msg("store file changed")
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", w.path).Msg("store watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
