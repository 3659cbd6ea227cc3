package logging

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// LevelSource reads the desired log level from the watched file.
type LevelSource func(path string) (string, error)

// LevelWatcher reapplies the log level whenever the config file changes.
type LevelWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	level    zap.AtomicLevel
	source   LevelSource
	logger   *zap.Logger
	debounce time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// WatchLevel watches path's directory, so editors that replace the file on save are
// still seen.
func WatchLevel(path string, level zap.AtomicLevel, source LevelSource, logger *zap.Logger) (*LevelWatcher, error) {
	if source == nil {
		return nil, errors.New("level source is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &LevelWatcher{
		watcher:  watcher,
		path:     abs,
		level:    level,
		source:   source,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *LevelWatcher) loop() {
	defer close(w.done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// A save often arrives as truncate + write; settle before reading.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *LevelWatcher) reload() {
	raw, err := w.source(w.path)
	if err != nil {
		w.logger.Warn("reload log level failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	lvl, err := ParseLevel(raw)
	if err != nil {
		w.logger.Warn("ignoring log level", zap.String("level", raw), zap.Error(err))
		return
	}
	if lvl == w.level.Level() {
		return
	}
	w.level.SetLevel(lvl)
	w.logger.Info("log level changed", zap.Stringer("level", lvl))
}

// Close stops watching and waits for the loop to exit.
func (w *LevelWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
