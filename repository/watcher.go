package repository

import (
	"context"
	"sync"
	"time"

	"DiscBox/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds the artist index when artist documents change on disk
// outside the process (hand-edited files, restores from backup). Rebuilds
// are debounced so a burst of writes triggers a single rebuild.
type Watcher struct {
	artists  ArtistRepository
	dir      string
	debounce time.Duration

	fsw      *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher over the artists directory.
func NewWatcher(artists ArtistRepository, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		artists:  artists,
		dir:      dir,
		debounce: 2 * time.Second,
		fsw:      fsw,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
	logger.Info("data watcher started", logger.String("dir", w.dir))
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.fsw.Close()
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.artists.RebuildIndex(context.Background()); err != nil {
				logger.Error("index rebuild after data change failed", logger.ErrorField(err))
			} else {
				logger.Debug("index rebuilt after data change")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("data watcher error", logger.ErrorField(err))
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
