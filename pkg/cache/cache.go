package cache

import "time"

// Cache stores token metadata and other small lookups with per-entry TTLs.
type Cache interface {
	// Get returns the cached value and whether the key was present.
	Get(key string) (interface{}, bool)

	// Set stores a value for at most ttl. It reports whether the entry was
	// accepted; admission policies may drop it.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete evicts a single key.
	Delete(key string)

	// Clear evicts everything.
	Clear()

	// Close releases the cache's resources.
	Close()
}
