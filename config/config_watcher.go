package config

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Verify at compile time that ConfigWatcher implements Watcher
var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the config file when it changes and publishes
// every valid new version to subscribers. An invalid file is logged and
// the previous configuration stays current.
type ConfigWatcher struct {
	currentConfig atomic.Value
	configPath    string
	watcher       *fsnotify.Watcher
	logger        *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Config
}

// NewConfigWatcher loads configPath and starts watching it.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	initialConfig, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		logger:     logger,
	}
	cw.currentConfig.Store(initialConfig)

	go cw.watchConfig()
	return cw, nil
}

// Subscribe returns a channel receiving each reloaded configuration.
// Slow subscribers miss intermediate versions.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	cw.mu.Lock()
	cw.subscribers = append(cw.subscribers, ch)
	cw.mu.Unlock()
	return ch
}

// GetCurrentConfig returns the current configuration thread-safely
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.currentConfig.Load().(*Config)
}

func (cw *ConfigWatcher) watchConfig() {
	defer cw.closeSubscribers()
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				cw.handleConfigChange()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				// editors replace the file; watch the new inode
				if err := cw.watcher.Add(cw.configPath); err == nil {
					cw.handleConfigChange()
				}
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange() {
	cw.logger.Info("Detected config file change, reloading...", zap.String("path", cw.configPath))

	data, err := os.ReadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("Failed to read new config", zap.Error(err))
		return
	}
	// truncated mid-write; the next write event carries the content
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	newConfig, err := Load(bytes.NewReader(data))
	if err != nil {
		cw.logger.Error("Failed to load new config", zap.Error(err))
		return
	}

	cw.currentConfig.Store(newConfig)

	cw.mu.Lock()
	for _, sub := range cw.subscribers {
		select {
		case sub <- newConfig:
		default:
		}
	}
	cw.mu.Unlock()

	cw.logger.Info("Configuration reloaded successfully")
}

func (cw *ConfigWatcher) closeSubscribers() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	for _, sub := range cw.subscribers {
		close(sub)
	}
	cw.subscribers = nil
}

// Close stops watching. Subscriber channels are closed.
func (cw *ConfigWatcher) Close() error {
	return cw.watcher.Close()
}
