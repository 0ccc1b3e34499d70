package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
)

// Cache provides thread-safe caching of decoded image files.
//
// The cache stores the decoded pages of each file keyed by its path. Once a
// file is loaded, subsequent calls for the same path return the cached copy
// without disk I/O. The viewer session reloads the same files whenever a
// layer is re-added, so caching keeps those round trips cheap.
//
// Cache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewCache()
//	stack, err := cache.LoadStack([]string{"/data/hippo.tif"}, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cache.Evict("/data/hippo.tif") // Optional: free memory
type Cache struct {
	mu    sync.RWMutex
	pages map[string][]image.Image
}

// NewCache creates and initializes a new empty image cache.
func NewCache() *Cache {
	return &Cache{
		pages: make(map[string][]image.Image),
	}
}

// Load returns the first page of a file, decoding it from disk if not cached.
//
// Supported formats are PNG, JPEG, GIF and TIFF. The image is cached using the
// exact path string provided.
func (c *Cache) Load(path string) (image.Image, error) {
	pages, err := c.LoadPages(path)
	if err != nil {
		return nil, err
	}
	return pages[0], nil
}

// LoadPages returns every page of a file. Only TIFF files have more than one.
func (c *Cache) LoadPages(path string) ([]image.Image, error) {
	c.mu.RLock()
	if pages, ok := c.pages[path]; ok {
		c.mu.RUnlock()
		return pages, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	pages, err := decodePages(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	c.mu.Lock()
	c.pages[path] = pages
	c.mu.Unlock()

	return pages, nil
}

// Evict removes a specific file from the cache by its path.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.pages, path)
	c.mu.Unlock()
}

// LoadStack loads one or more files and returns a single (channel, row, column)
// stack.
//
// Parameters:
//   - paths: One file per z-plane. A single-page file must decode to a
//     colour image whose R, G and B components become channels 0, 1 and 2.
//     A multi-page TIFF holds one grayscale page per channel, in order.
//   - maxProjected: When true the input is already a maximum-intensity
//     projection and exactly one path is expected. When false, several paths
//     are collapsed with MaxProject; a single path is used as is.
//
// Returns an error wrapping ErrNotThreeDimensional when any file is a single
// grayscale (2-dimensional) page. Validation happens before any projection.
func (c *Cache) LoadStack(paths []string, maxProjected bool) (*Stack, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image paths given")
	}
	if maxProjected && len(paths) > 1 {
		return nil, fmt.Errorf("max-projected input takes one file, got %d", len(paths))
	}

	planes := make([]*Stack, 0, len(paths))
	for _, p := range paths {
		pages, err := c.LoadPages(p)
		if err != nil {
			return nil, err
		}
		var s *Stack
		if len(pages) > 1 {
			s, err = PagesToStack(pages)
		} else {
			s, err = ToStack(pages[0])
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		planes = append(planes, s)
	}

	if len(planes) == 1 {
		return planes[0], nil
	}
	return MaxProject(planes)
}

// ToStack converts a decoded image into a 3-channel stack.
//
// # Dimensionality
//
// Grayscale and alpha-only images carry a single sample per pixel, which makes
// them 2-dimensional (row, column). They are rejected with an error wrapping
// ErrNotThreeDimensional. Every other image model yields 3 channels taken
// from the non-premultiplied R, G and B components.
//
// # Bit Depth
//
//   - *image.RGBA64, *image.NRGBA64 -> 16-bit values (0-65535)
//   - All other colour types -> 8-bit values (0-255)
func ToStack(img image.Image) (*Stack, error) {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()

	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return nil, fmt.Errorf("%w: got 2 dimensions (%d, %d)", ErrNotThreeDimensional, rows, cols)
	}

	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrNotThreeDimensional, cols, rows)
	}

	sixteen := false
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64:
		sixteen = true
	}

	depth := 8
	if sixteen {
		depth = 16
	}
	s := NewStack(3, rows, cols, depth)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px := img.At(x+b.Min.X, y+b.Min.Y)
			if sixteen {
				n := color.NRGBA64Model.Convert(px).(color.NRGBA64)
				s.Set(0, y, x, float64(n.R))
				s.Set(1, y, x, float64(n.G))
				s.Set(2, y, x, float64(n.B))
				continue
			}
			n := color.NRGBAModel.Convert(px).(color.NRGBA)
			s.Set(0, y, x, float64(n.R))
			s.Set(1, y, x, float64(n.G))
			s.Set(2, y, x, float64(n.B))
		}
	}

	return s, nil
}
