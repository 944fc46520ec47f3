package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	domainconfig "designgraph/domain/config"
)

// PolicyWatcher reloads the policy file when it changes on disk
type PolicyWatcher struct {
	path     string
	base     *domainconfig.DomainConfig
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu       sync.RWMutex
	current  *Policy
	onChange []func(*Policy)
	// reloads run one at a time so listeners observe policies in order
	reloadMu sync.Mutex
}

// NewPolicyWatcher loads the policy at path and prepares a watcher for it.
// base supplies values the file omits.
func NewPolicyWatcher(path string, base *domainconfig.DomainConfig, debounce time.Duration, logger *zap.Logger) (*PolicyWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	pol, err := LoadPolicy(path, base)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial policy: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch policy file: %w", err)
	}
	// Editors often save by rename, which drops the file watch
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("Failed to watch policy directory", zap.Error(err))
	}

	return &PolicyWatcher{
		path:     path,
		base:     base.Clone(),
		debounce: debounce,
		logger:   logger,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		current:  pol,
	}, nil
}

// Current returns the active policy
func (w *PolicyWatcher) Current() *Policy {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a listener called after each successful reload.
// Listeners run on the reload goroutine.
func (w *PolicyWatcher) OnChange(fn func(*Policy)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching for changes
func (w *PolicyWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Policy watcher started", zap.String("path", w.path))
}

// Stop ends the watch loop and waits for it to exit
func (w *PolicyWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
	w.logger.Info("Policy watcher stopped")
}

func (w *PolicyWatcher) watchLoop() {
	defer close(w.doneCh)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case <-w.stopCh:
					return
				default:
				}
				if err := w.Reload(); err != nil {
					w.logger.Error("Invalid policy, keeping current", zap.Error(err))
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// Reload reads the policy file now. On error the current policy is kept.
func (w *PolicyWatcher) Reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	pol, err := LoadPolicy(w.path, w.base)
	if err != nil {
		return err
	}

	w.mu.Lock()
	old := w.current
	w.current = pol
	listeners := append([]func(*Policy){}, w.onChange...)
	w.mu.Unlock()

	w.logger.Info("Policy reloaded",
		zap.String("path", w.path),
		zap.String("oldPhase", old.Domain.Phase),
		zap.String("newPhase", pol.Domain.Phase),
		zap.Int("catalogSize", len(pol.Catalog)))

	for _, fn := range listeners {
		fn(pol)
	}
	return nil
}
