package pipeline

import (
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
)

// ShaderWatcherBuilderOption is a functional option used to configure a ShaderWatcher during construction.
type ShaderWatcherBuilderOption func(*shaderWatcher)

// WithDebounce sets how long the watcher waits after the last file event before reloading.
//
// Parameters:
//   - d: the debounce window
//
// Returns:
//   - ShaderWatcherBuilderOption: a function that sets the debounce window
func WithDebounce(d time.Duration) ShaderWatcherBuilderOption {
	return func(w *shaderWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLoader sets how the watcher rereads the shader, so reloads keep the options the first load used.
//
// Parameters:
//   - load: reads and parses the shader at path
//
// Returns:
//   - ShaderWatcherBuilderOption: a function that sets the loader
func WithLoader(load func(key, path string) (shader.Shader, error)) ShaderWatcherBuilderOption {
	return func(w *shaderWatcher) {
		if load != nil {
			w.loader = load
		}
	}
}
