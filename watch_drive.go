package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// driveWatcher watches the few directories on the card that the status check
// reads (the root, luma, luma/payloads) and fires notify after changes settle,
// so the GUI can refresh the installation status without a manual re-check.
type driveWatcher struct {
	watcher *fsnotify.Watcher
	root    string
	notify  func()
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newDriveWatcher(root string, notify func()) (*driveWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dw := &driveWatcher{
		watcher: w,
		root:    filepath.Clean(root),
		notify:  notify,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	return dw, nil
}

func (dw *driveWatcher) Start() error {
	added := 0
	for _, dir := range []string{
		dw.root,
		filepath.Join(dw.root, "luma"),
		filepath.Join(dw.root, "luma", "payloads"),
	} {
		st, err := os.Stat(dir)
		if err != nil || !st.IsDir() {
			continue
		}
		if err := dw.watcher.Add(dir); err != nil {
			continue
		}
		added++
	}
	if added == 0 {
		_ = dw.watcher.Close()
		return os.ErrNotExist
	}
	go dw.loop()
	return nil
}

func (dw *driveWatcher) Stop() {
	select {
	case <-dw.stopCh:
		// already stopped
		return
	default:
		close(dw.stopCh)
	}
	_ = dw.watcher.Close()
	<-dw.doneCh
}

func (dw *driveWatcher) loop() {
	defer close(dw.doneCh)

	var timer *time.Timer
	pending := false
	flush := func() {
		if !pending {
			return
		}
		pending = false
		if dw.notify != nil {
			dw.notify()
		}
	}
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(250 * time.Millisecond)
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(250 * time.Millisecond)
	}

	for {
		select {
		case <-dw.stopCh:
			if timer != nil {
				_ = timer.Stop()
			}
			flush()
			return
		case _, ok := <-dw.watcher.Errors:
			if !ok {
				flush()
				return
			}
		case ev, ok := <-dw.watcher.Events:
			if !ok {
				flush()
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			// A fresh luma or payloads directory should be watched too, so an
			// install on a blank card still triggers a refresh.
			if ev.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					_ = dw.watcher.Add(ev.Name)
				}
			}
			pending = true
			resetTimer()
		case <-func() <-chan time.Time {
			if timer == nil {
				return nil
			}
			return timer.C
		}():
			flush()
		}
	}
}
