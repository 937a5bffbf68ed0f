package texture

import (
	"image"
	"log/slog"
	"os"
	"sync"

	"urdf-asset-renderer/internal/logx"
)

// Resolver resolves a texture reference to a decoded image.
type Resolver interface {
	Resolve(ref string) *image.NRGBA
}

// Cache is a concurrency-safe texture cache. Failed loads are cached too,
// so a missing texture is only looked up once and an undecodable one is
// reported once.
type Cache struct {
	mu     sync.RWMutex
	items  map[string]*cacheEntry
	index  *Index
	logger *slog.Logger
}

type cacheEntry struct {
	img    *image.NRGBA
	loaded bool // true if we've attempted to load (img may still be nil)
}

// NewCache creates a texture cache. index may be nil; it is consulted only
// for references that do not exist on disk. A nil logger discards.
func NewCache(index *Index, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Cache{
		items:  make(map[string]*cacheEntry),
		index:  index,
		logger: logger,
	}
}

// Resolve loads and caches a texture by path. Returns nil if not found or
// undecodable.
func (c *Cache) Resolve(ref string) *image.NRGBA {
	if ref == "" {
		return nil
	}
	path := ref
	if _, err := os.Stat(path); err != nil {
		p, ok := c.index.ResolvePath(ref)
		if !ok {
			return nil
		}
		path = p
	}

	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return entry.img
	}
	c.mu.RUnlock()

	// Slow path: load from disk
	img, err := LoadTexture(path)

	// Write lock with double-check
	c.mu.Lock()
	if entry, exists := c.items[path]; exists {
		c.mu.Unlock()
		return entry.img
	}
	c.items[path] = &cacheEntry{img: img, loaded: true}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("texture unavailable", "path", path, "err", err)
	}
	return img
}

// Len returns the number of paths attempted so far.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
