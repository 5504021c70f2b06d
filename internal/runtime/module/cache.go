package module

import (
	"os"
	"path/filepath"
)

// Cache is the module cache: content-addressed directories under
// <data-home>/cache/modules/<hash>/, each holding an empty marker file.
// Nothing is compiled into it and a hit skips no work: Load parses and
// validates a module on every call, and Ensure only reports whether the
// content hash was recorded before. Content addressing makes concurrent writers race-free:
// last writer wins with identical bytes.
type Cache struct {
	dir string
}

// NewCache opens (creating if necessary) the AOT cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// markerPath is the cache entry for a given content hash: its mere
// existence signals a cache hit.
func (c *Cache) markerPath(hash string) string {
	return filepath.Join(c.dir, hash, "compiled")
}

// Hit reports whether hash has already been compiled and cached.
func (c *Cache) Hit(hash string) bool {
	_, err := os.Stat(c.markerPath(hash))
	return err == nil
}

// Store records hash as compiled, creating its cache directory.
func (c *Cache) Store(hash string) error {
	dir := filepath.Join(c.dir, hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.markerPath(hash), []byte{}, 0o644)
}

// Ensure is the cache's public entry point: given a freshly loaded module,
// it records the module as compiled if this is the first time its content
// hash has been seen, and reports whether it already was (a cache hit).
func (c *Cache) Ensure(mod *Module) (hit bool, err error) {
	if c.Hit(mod.Hash) {
		return true, nil
	}
	return false, c.Store(mod.Hash)
}
