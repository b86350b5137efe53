package fixconfig

import (
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher reloads the config file whenever it changes on disk and hands
// the new value to OnReload. Most editors replace a file on save rather
// than writing in place, so Watcher follows fsnotify.Remove/Rename events
// by re-adding the watch, not just Write.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*Config)
	debounce time.Duration
	stop     chan struct{}
}

// NewWatcher creates a Watcher for path. Call Start to begin watching.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		watcher:  fw,
		onReload: onReload,
		debounce: 200 * time.Millisecond,
		stop:     make(chan struct{}),
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Start runs the watch loop in a goroutine until Stop is called.
func (w *Watcher) Start() {
	go w.run()
}

// Stop ends the watch loop and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.watcher.Remove(w.path)
				w.watcher.Add(w.path)
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("fixconfig: watch error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Warnf("fixconfig: reload of %s failed, keeping previous config: %v", w.path, err)
		return
	}
	log.Infof("fixconfig: reloaded %s", w.path)
	w.onReload(cfg)
}
