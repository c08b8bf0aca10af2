// Package cache holds the byte caches behind backend reads and the LRU
// cache for phrase embeddings.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const keyPrefix = "donortrace:v1:"

// Cache is a byte cache with per-entry TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key from its parts
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}
