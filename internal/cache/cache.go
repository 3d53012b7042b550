package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching extraction results
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key from document content, so a document keeps
// its cached extraction even after it is renamed or moved
func Key(content []byte) string {
	hash := sha256.Sum256(content)
	return "claimsort:v1:" + hex.EncodeToString(hash[:])
}
