package cache

import (
	"errors"
	"time"
)

// LayeredCache checks layers in order and promotes hits to the faster
// layers in front of the one that answered.
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache creates a cache over layers, fastest first
func NewLayeredCache(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

// NewMemoryDiskCache is the usual memory-then-disk stack
func NewMemoryDiskCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayeredCache(
		NewMemoryCache(memoryTTL, 10*time.Minute),
		NewDiskCache(diskDir, diskTTL),
	)
}

// Get returns the first hit
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, found := layer.Get(key)
		if !found {
			continue
		}
		for _, faster := range c.layers[:i] {
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set writes to every layer
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Set(key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from every layer
func (c *LayeredCache) Delete(key string) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear empties every layer
func (c *LayeredCache) Clear() error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
