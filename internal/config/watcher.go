package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"guildhall-backend/internal/access"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadPolicy reads an access policy file:
//
//	moderators:
//	  - user-123
func LoadPolicy(path string) (access.Policy, error) {
	var policy access.Policy
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return policy, nil
}

// InitialPolicy returns the policy from Access.PolicyFile when set, otherwise
// from Access.Moderators.
func (c *Config) InitialPolicy() (access.Policy, error) {
	if c.Access.PolicyFile == "" {
		return access.Policy{Moderators: c.Access.Moderators}, nil
	}
	return LoadPolicy(c.Access.PolicyFile)
}

// PolicyWatcher reloads the access policy into a Holder when its file
// changes. A file that fails to parse leaves the current policy in place.
type PolicyWatcher struct {
	path     string
	holder   *access.Holder
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPolicyWatcher starts watching path. The parent directory is watched
// because editors and config management replace files by rename.
func NewPolicyWatcher(path string, holder *access.Holder, logger *zap.Logger) (*PolicyWatcher, error) {
	return newPolicyWatcher(path, holder, logger, 200*time.Millisecond)
}

func newPolicyWatcher(path string, holder *access.Holder, logger *zap.Logger, debounce time.Duration) (*PolicyWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &PolicyWatcher{
		path:     abs,
		holder:   holder,
		logger:   logger,
		watcher:  fsWatcher,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.watchLoop()

	logger.Info("Access policy hot reloading enabled", zap.String("path", abs))
	return w, nil
}

func (w *PolicyWatcher) watchLoop() {
	defer close(w.done)
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Access policy file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *PolicyWatcher) reload() {
	policy, err := LoadPolicy(w.path)
	if err != nil {
		w.logger.Error("Invalid access policy after change, keeping current policy", zap.Error(err))
		return
	}
	w.holder.Set(policy)
	w.logger.Info("Access policy reloaded", zap.Int("moderators", len(policy.Moderators)))
}

// Stop ends the watch loop and waits for it to exit.
func (w *PolicyWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.done
}
