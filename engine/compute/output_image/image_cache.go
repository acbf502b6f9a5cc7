package output_image

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// imageCache is the implementation of the ImageCache interface.
type imageCache struct {
	device  device.Device
	label   string
	current OutputImage
	texture device.Texture
}

// ImageCache owns the GPU texture backing the current OutputImage on the render side. It is used only from the
// render goroutine.
type ImageCache interface {
	// Resolve returns the texture for img, creating it when img differs from the cached handle. The previous
	// texture is released once its replacement exists.
	//
	// Parameters:
	//   - img: the handle from the current frame's snapshot
	//
	// Returns:
	//   - device.Texture: the texture backing img
	//   - bool: true if a new texture was created this call
	//   - error: an error if the handle is invalid or the texture could not be created
	Resolve(img OutputImage) (device.Texture, bool, error)

	// Current returns the cached handle and its texture, or a zero handle and nil before the first Resolve.
	//
	// Returns:
	//   - OutputImage: the cached handle
	//   - device.Texture: the cached texture
	Current() (OutputImage, device.Texture)

	// Release frees the cached texture.
	Release()
}

var _ ImageCache = &imageCache{}

// NewImageCache creates an empty cache that allocates textures on d.
//
// Parameters:
//   - d: the device to allocate textures on
//
// Returns:
//   - ImageCache: the new cache
func NewImageCache(d device.Device) ImageCache {
	return &imageCache{device: d, label: "Output Image"}
}

func (c *imageCache) Resolve(img OutputImage) (device.Texture, bool, error) {
	if !img.Valid() {
		return nil, false, fmt.Errorf("output image: unissued handle %s", img)
	}
	if c.texture != nil && c.current.ID == img.ID {
		return c.texture, false, nil
	}

	tex, err := c.device.CreateStorageTexture(c.label, img.Width, img.Height, img.Fill)
	if err != nil {
		return nil, false, fmt.Errorf("output image: failed to allocate %s: %w", img, err)
	}
	if c.texture != nil {
		c.texture.Release()
	}
	common.Logger().Debug("output image texture allocated", "image", img.String())
	c.current = img
	c.texture = tex
	return tex, true, nil
}

func (c *imageCache) Current() (OutputImage, device.Texture) {
	return c.current, c.texture
}

func (c *imageCache) Release() {
	if c.texture != nil {
		c.texture.Release()
		c.texture = nil
	}
	c.current = OutputImage{}
}
