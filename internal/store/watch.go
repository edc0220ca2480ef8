package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Editors tend to emit bursts of events per save; changes are
// coalesced per path before the callback fires.
const debounceWindow = 100 * time.Millisecond

type fsWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)

	mu       sync.Mutex
	debounce map[string]*time.Timer
}

func newFSWatcher(dir string, onChange func(path string)) (*fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	fw := &fsWatcher{
		watcher:  w,
		onChange: onChange,
		debounce: map[string]*time.Timer{},
	}
	go fw.loop()
	return fw, nil
}

func (w *fsWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ev.Name)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *fsWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()
		w.onChange(path)
	})
}

func (w *fsWatcher) Close() error {
	return w.watcher.Close()
}
