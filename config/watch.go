package config

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"MixGrid/logger"
)

// Watcher reloads the configuration whenever the .env file changes, so
// tuning values (log level, editor tick rate) can be adjusted without a
// restart. Connection settings are only read at startup; a reload does not
// reconnect the database.
type Watcher struct {
	mu      sync.RWMutex
	current *Config
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching envPath. If the file does not exist the watcher
// is a no-op holder around the initial config.
func NewWatcher(initial *Config, envPath string) (*Watcher, error) {
	w := &Watcher{
		current: initial,
		done:    make(chan struct{}),
	}

	if _, err := os.Stat(envPath); err != nil {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(envPath); err != nil {
		fsw.Close()
		return nil, err
	}
	w.watcher = fsw

	go w.loop(envPath)
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the watch loop.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) loop(envPath string) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Overload so edited values win over the stale process env.
			if err := godotenv.Overload(envPath); err != nil {
				logger.Warn("config reload failed", logger.ErrorField(err))
				continue
			}
			cfg := Load()
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			logger.Info("configuration reloaded", logger.String("path", envPath))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", logger.ErrorField(err))

		case <-w.done:
			return
		}
	}
}
