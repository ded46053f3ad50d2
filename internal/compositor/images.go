package compositor

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// imageCache decodes still images once per path. Decode failures are cached
// too, until invalidated, so a broken file is not re-read every frame.
type imageCache struct {
	mu      sync.Mutex
	entries map[string]cachedImage
}

type cachedImage struct {
	img image.Image
	err error
}

func newImageCache() *imageCache {
	return &imageCache{entries: make(map[string]cachedImage)}
}

func (c *imageCache) load(path string) (image.Image, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok {
		return e.img, e.err
	}

	img, err := decodeFile(path)
	c.mu.Lock()
	c.entries[path] = cachedImage{img: img, err: err}
	c.mu.Unlock()
	return img, err
}

func (c *imageCache) invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
