// Package kubeconfig loads per-route PromptGuardPolicy configuration from a
// YAML file mounted by the Kubernetes control plane (typically a ConfigMap
// projected volume) and republishes it on change.
package kubeconfig

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
)

// document is the on-disk shape: one policy per route name.
type document struct {
	Routes map[string]*policy.PromptGuardPolicy `yaml:"routes"`
}

// Loader resolves the current PromptGuardPolicy for a route name and
// notifies callers when the underlying config changes.
type Loader interface {
	Policy(route string) (*policy.PromptGuardPolicy, bool)
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// FileLoader reads routes from a single YAML file and watches it with
// fsnotify, reloading the full document on any write or rename event —
// ConfigMap projections replace the file via a symlink swap, which surfaces
// to fsnotify as a rename of the watched path.
type FileLoader struct {
	path string

	mu     sync.RWMutex
	routes map[string]*policy.PromptGuardPolicy
}

// NewFileLoader reads path once synchronously and returns a ready Loader.
func NewFileLoader(path string) (*FileLoader, error) {
	l := &FileLoader{path: path}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLoader) reload() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("kubeconfig: reading %s: %w", l.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("kubeconfig: parsing %s: %w", l.path, err)
	}
	l.mu.Lock()
	l.routes = doc.Routes
	l.mu.Unlock()
	return nil
}

// Ready implements health.ReadinessChecker; a constructed FileLoader has
// always completed at least one successful load.
func (l *FileLoader) Ready() bool {
	return true
}

// Policy implements Loader.
func (l *FileLoader) Policy(route string) (*policy.PromptGuardPolicy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.routes[route]
	return p, ok
}

// Watch implements Loader, reloading the file and emitting on the returned
// channel whenever its contents change. The channel is closed when ctx is
// done or the watcher fails irrecoverably.
func (l *FileLoader) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("kubeconfig: creating watcher: %w", err)
	}
	if err := watcher.Add(l.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("kubeconfig: watching %s: %w", l.path, err)
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(changed)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := l.reload(); err != nil {
					continue
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return changed, nil
}
