package cache

import "time"

// Cache holds resolved remote lookups, currently broadcaster identities.
// Values are plain string identifiers keyed by lookup name.
type Cache interface {
	// Get retrieves a cached identifier.
	// Returns ("", false) if the key is absent or expired.
	Get(key string) (string, bool)

	// Set stores an identifier with a TTL. The write is asynchronous and
	// may be rejected under contention; callers must treat the cache as
	// best-effort.
	Set(key, value string, ttl time.Duration) bool

	// Close releases the cache's resources.
	Close()
}
