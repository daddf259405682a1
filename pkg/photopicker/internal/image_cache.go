package internal

import (
	"image"
	"sync"

	"go.uber.org/atomic"
)

const (
	defaultMaxCacheEntries       = 256
	defaultMaxCacheBytes   int64 = 256 * 1024 * 1024
)

// ImageCache is the session cache holding the most recent rendering of each
// asset, keyed by asset identifier. It is shared by the decode pipeline and the
// remote fetcher. Entries are evicted least recently used first once either the
// entry count or the byte budget is exceeded.
type ImageCache struct {
	mu       sync.Mutex
	images   map[string]image.Image
	sizes    map[string]int64
	order    []string // tracks use order for LRU eviction, oldest first
	maxSize  int
	maxBytes int64
	bytes    int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func NewImageCache() *ImageCache {
	return NewImageCacheWithLimits(defaultMaxCacheEntries, defaultMaxCacheBytes)
}

// NewImageCacheWithLimits creates a cache bounded by entry count and bytes.
// A non-positive limit disables that bound.
func NewImageCacheWithLimits(maxSize int, maxBytes int64) *ImageCache {
	return &ImageCache{
		images:   make(map[string]image.Image),
		sizes:    make(map[string]int64),
		order:    make([]string, 0),
		maxSize:  maxSize,
		maxBytes: maxBytes,
	}
}

func (c *ImageCache) Get(key string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img, exists := c.images[key]; exists {
		c.moveToEnd(key)
		c.hits.Inc()
		return img, true
	}
	c.misses.Inc()
	return nil, false
}

// Set stores img under key. Nil images are ignored.
func (c *ImageCache) Set(key string, img image.Image) {
	if img == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size := ImageBytes(img)

	if _, exists := c.images[key]; exists {
		c.bytes += size - c.sizes[key]
		c.images[key] = img
		c.sizes[key] = size
		c.moveToEnd(key)
		c.evictOverBudget(key)
		return
	}

	c.images[key] = img
	c.sizes[key] = size
	c.bytes += size
	c.order = append(c.order, key)
	c.evictOverBudget(key)
}

func (c *ImageCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.images[key]; !exists {
		return
	}
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.remove(key)
}

// Values returns the cached images, oldest first.
func (c *ImageCache) Values() []image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]image.Image, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.images[k])
	}
	return out
}

func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

func (c *ImageCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries   int
	Bytes     int64
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *ImageCache) Stats() CacheStats {
	c.mu.Lock()
	entries, bytes := len(c.images), c.bytes
	c.mu.Unlock()

	return CacheStats{
		Entries:   entries,
		Bytes:     bytes,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Purge drops every entry. Called when the picker session ends.
func (c *ImageCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.images = make(map[string]image.Image)
	c.sizes = make(map[string]int64)
	c.order = c.order[:0]
	c.bytes = 0
}

func (c *ImageCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// evictOverBudget drops the oldest entries until both bounds hold. The entry
// just written is never evicted, so a single oversized image still caches.
func (c *ImageCache) evictOverBudget(keep string) {
	for len(c.order) > 1 {
		overCount := c.maxSize > 0 && len(c.order) > c.maxSize
		overBytes := c.maxBytes > 0 && c.bytes > c.maxBytes
		if !overCount && !overBytes {
			return
		}

		oldest := c.order[0]
		if oldest == keep {
			return
		}
		c.order = c.order[1:]
		c.remove(oldest)
		c.evictions.Inc()
	}
}

func (c *ImageCache) remove(key string) {
	c.bytes -= c.sizes[key]
	delete(c.images, key)
	delete(c.sizes, key)
}

// ImageBytes estimates the in-memory size of a decoded image at four bytes per pixel.
func ImageBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
