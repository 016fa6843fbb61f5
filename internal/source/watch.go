package source

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a Watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls onChange after the watched file is written, created,
// renamed or removed. Bursts of events within the debounce interval
// produce one call.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	debounce time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors replacing the file atomically are noticed.
func NewWatcher(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("bad watch path %q: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(absPath), err)
	}

	w := &Watcher{
		watcher:  fw,
		path:     absPath,
		onChange: onChange,
		debounce: debounce,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if abs, _ := filepath.Abs(event.Name); abs != w.path {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				log.Printf("Source file changed: %s", w.path)
				w.onChange()
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Source watcher error: %v", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
