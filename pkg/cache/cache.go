package cache

import "time"

// Cache is the key-value contract used by the read-through layers.
// Values are opaque; callers type-assert on the way out. Last-writer-wins
// on concurrent sets of the same key.
type Cache interface {
	// Get retrieves a value by key. Returns (nil, false) for missing or expired keys.
	Get(key string) (any, bool)

	// Set stores a value with a TTL. ttl <= 0 applies the cache's default TTL.
	Set(key string, value any, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string) error

	// Has reports whether a key exists and is not expired.
	Has(key string) bool

	// Keys returns all non-expired keys.
	Keys() []string

	// Size returns the number of non-expired entries.
	Size() int

	// Clear removes all entries.
	Clear() error
}
