package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
	"github.com/fsnotify/fsnotify"
)

// ErrNoShaderPath is returned when watching a shader that was not loaded from a file.
var ErrNoShaderPath = errors.New("pipeline: shader has no source path")

// shaderWatcher is the implementation of the ShaderWatcher interface.
type shaderWatcher struct {
	cache    PipelineCache
	key      string
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	loader   func(key, path string) (shader.Shader, error)
	reloaded chan error
}

// ShaderWatcher reloads a PipelineCache's shader whenever its source file changes.
type ShaderWatcher interface {
	// Run watches the source file until ctx is cancelled. Bursts of events within the debounce window cause one
	// reload. Reload failures are logged and do not stop the watcher.
	//
	// Parameters:
	//   - ctx: cancelling it stops the watcher
	//
	// Returns:
	//   - error: nil on cancellation, or an error from the file system watcher
	Run(ctx context.Context) error

	// Reloaded delivers the outcome of every reload attempt. Sends never block; outcomes nobody reads are dropped.
	//
	// Returns:
	//   - <-chan error: nil for a successful reload, the failure otherwise
	Reloaded() <-chan error

	// Close stops watching the file system.
	//
	// Returns:
	//   - error: an error from the file system watcher
	Close() error
}

var _ ShaderWatcher = &shaderWatcher{}

// NewShaderWatcher watches the source file of the cache's current shader. The parent directory is watched so
// editors that replace the file on save are picked up.
//
// Parameters:
//   - cache: the cache to reload
//   - options: builder options
//
// Returns:
//   - ShaderWatcher: the new watcher, not yet running
//   - error: ErrNoShaderPath, or an error from the file system watcher
func NewShaderWatcher(cache PipelineCache, options ...ShaderWatcherBuilderOption) (ShaderWatcher, error) {
	s := cache.Shader()
	if s.Path() == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoShaderPath, s.Key())
	}
	path, err := filepath.Abs(s.Path())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	w := &shaderWatcher{
		cache:    cache,
		key:      s.Key(),
		path:     path,
		debounce: 100 * time.Millisecond,
		loader:   func(key, path string) (shader.Shader, error) { return shader.NewShaderFromPath(key, path) },
		reloaded: make(chan error, 1),
	}
	for _, option := range options {
		option(w)
	}

	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		w.watcher.Close()
		return nil, fmt.Errorf("pipeline: failed to watch %s: %w", path, err)
	}
	return w, nil
}

func (w *shaderWatcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("pipeline: shader watcher: %w", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *shaderWatcher) Reloaded() <-chan error {
	return w.reloaded
}

func (w *shaderWatcher) Close() error {
	return w.watcher.Close()
}

func (w *shaderWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *shaderWatcher) reload() {
	s, err := w.loader(w.key, w.path)
	if err == nil {
		err = w.cache.Reload(s)
	}
	if err != nil {
		common.Logger().Warn("shader hot reload failed", "shader", w.key, "path", w.path, "error", err)
	} else {
		common.Logger().Info("shader source changed", "shader", w.key, "path", w.path)
	}

	select {
	case w.reloaded <- err:
	default:
	}
}
