package assets

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/heliosrt/helios/engine/core"
)

// debounceDelay coalesces the burst of write events editors produce when
// saving a file.
const debounceDelay = 100 * time.Millisecond

// ShaderWatcher watches one shader source file and reports each time it
// changes on disk. The engine drains in-flight GPU work and rebuilds
// pipelines on every event.
type ShaderWatcher struct {
	path string

	mutex    sync.Mutex
	fsnotify *fsnotify.Watcher
	isClosed bool

	done    chan struct{}
	changed chan string
}

func NewShaderWatcher(path string) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &ShaderWatcher{
		path:     path,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		changed:  make(chan string, 1),
	}

	// Watch the directory, not the file: editors replace files on save,
	// which drops a file-level watch.
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Changed delivers the shader path each time the file settles after a
// modification. The channel has capacity one; unconsumed events coalesce.
func (w *ShaderWatcher) Changed() <-chan string {
	return w.changed
}

func (w *ShaderWatcher) run() {
	var debounce *time.Timer
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case w.changed <- w.path:
					core.LogInfo("shader source changed: %s", w.path)
				default:
				}
			})
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher: %s", err)
		}
	}
}

func (w *ShaderWatcher) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return errors.New("shader watcher already closed")
	}
	w.isClosed = true
	close(w.done)
	return w.fsnotify.Close()
}
