package cache

import "time"

// Cache is a byte-oriented cache with per-entry expiration. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, content []byte, duration time.Duration) error
}
