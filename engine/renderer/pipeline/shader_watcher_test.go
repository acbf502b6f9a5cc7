package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device/mock_device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nextReload waits for a reload outcome matching want, skipping outcomes of earlier bursts.
func nextReload(t *testing.T, w ShaderWatcher, want func(error) bool) error {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case err := <-w.Reloaded():
			if want(err) {
				return err
			}
		case <-deadline:
			t.Fatal("timed out waiting for shader reload")
			return nil
		}
	}
}

func TestShaderWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raytracer.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1\n"+kernelWGSL), 0o644))
	s, err := shader.NewShaderFromPath("raytracer", path)
	require.NoError(t, err)

	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), s)
	require.NoError(t, err)
	waitReady(t, c, pipeline_readiness.EntryPointInit)

	w, err := NewShaderWatcher(c, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("// v2\n"+kernelWGSL), 0o644))
	nextReload(t, w, func(err error) bool { return err == nil })
	assert.Contains(t, c.Shader().Source(), "v2")
	require.Eventually(t, func() bool {
		p, _, _ := c.Ready(pipeline_readiness.EntryPointInit)
		return strings.Contains(p.(*mock_device.MockPipeline).Source, "v2")
	}, waitFor, tick)

	require.NoError(t, os.WriteFile(path, []byte("//@oxy:include mesh\n"+kernelWGSL), 0o644))
	err = nextReload(t, w, func(err error) bool { return err != nil })
	assert.Contains(t, err.Error(), "unknown struct type")
	assert.Contains(t, c.Shader().Source(), "v2")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("watcher did not stop")
	}
}

func TestShaderWatcher_RequiresPath(t *testing.T) {
	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)

	_, err = NewShaderWatcher(c)
	assert.ErrorIs(t, err, ErrNoShaderPath)
}

func TestShaderWatcher_LoaderKeepsWorkgroupOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raytracer.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1\n"+kernelWGSL), 0o644))
	load := func(key, path string) (shader.Shader, error) {
		return shader.NewShaderFromPath(key, path, shader.WithWorkgroupSize(4, 4))
	}
	s, err := load("raytracer", path)
	require.NoError(t, err)

	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), s)
	require.NoError(t, err)
	waitReady(t, c, pipeline_readiness.EntryPointInit)

	w, err := NewShaderWatcher(c, WithDebounce(20*time.Millisecond), WithLoader(load))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("// v2\n"+kernelWGSL), 0o644))
	nextReload(t, w, func(err error) bool { return err == nil })
	assert.Equal(t, [3]uint32{4, 4, 1}, c.Shader().WorkgroupSize(pipeline_readiness.EntryPointInit))
	require.Eventually(t, func() bool {
		p, size, ok, _ := c.ReadySized(pipeline_readiness.EntryPointInit)
		return ok && strings.Contains(p.(*mock_device.MockPipeline).Source, "v2") && size == [3]uint32{4, 4, 1}
	}, waitFor, tick)
}
