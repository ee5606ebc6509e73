package mnemod

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/pkg/logger"
)

// EventConfigReloaded is emitted when the config file changes on disk.
// Plugins interested in live settings subscribe to it.
const EventConfigReloaded = "config.reloaded"

// configWatcher emits a bus event whenever the resolved config file is
// rewritten. The directory is watched rather than the file itself so
// editors that replace the file atomically are still caught.
type configWatcher struct {
	file    string
	bus     *event.Bus
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func newConfigWatcher(file string, bus *event.Bus) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(file)); err != nil {
		w.Close()
		return nil, err
	}

	return &configWatcher{
		file:    file,
		bus:     bus,
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the watch loop on its own goroutine.
func (c *configWatcher) Start() {
	logger.Info("[Mnemod] watching config file %s", c.file)

	go func() {
		for {
			select {
			case evt, ok := <-c.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != filepath.Clean(c.file) {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				logger.Info("[Mnemod] config file changed, emitting %s", EventConfigReloaded)
				if err := c.bus.Emit(context.Background(), EventConfigReloaded, map[string]interface{}{
					"file": c.file,
				}); err != nil {
					logger.Warn("[Mnemod] config reload handler error: %v", err)
				}
			case err, ok := <-c.watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("[Mnemod] config watcher error: %v", err)
			case <-c.done:
				return
			}
		}
	}()
}

// Close stops the watch loop.
func (c *configWatcher) Close() {
	close(c.done)
	c.watcher.Close()
}
