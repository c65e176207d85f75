package data

import (
	"strings"
	"sync"
)

// CacheMode defines how replay handles the end of a ticker's snapshots.
type CacheMode string

const (
	CacheModeExhaust  CacheMode = "exhaust"  // stays at the end
	CacheModeRotation CacheMode = "rotation" // wraps to 0
)

// ParseCacheMode returns the mode for s, defaulting to exhaust.
func ParseCacheMode(s string) CacheMode {
	if CacheMode(strings.ToLower(s)) == CacheModeRotation {
		return CacheModeRotation
	}
	return CacheModeExhaust
}

// IndexCache tracks replay positions per ticker and consumer.
type IndexCache struct {
	mu      sync.RWMutex
	indexes map[string]int // key: ticker/consumer
	mode    CacheMode
}

func NewIndexCache(mode CacheMode) *IndexCache {
	return &IndexCache{
		indexes: make(map[string]int),
		mode:    mode,
	}
}

// CacheKey builds the replay key for a consumer (API caller or stream group).
func CacheKey(ticker, consumer string) string {
	return ticker + "/" + consumer
}

// Mode returns the configured end-of-data behavior.
func (c *IndexCache) Mode() CacheMode {
	return c.mode
}

// GetAndAdvance returns the current index and advances it.
// Returns (index, isExhausted)
func (c *IndexCache) GetAndAdvance(key string, dataLength int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dataLength <= 0 {
		return 0, true
	}

	idx := c.indexes[key]

	if c.mode == CacheModeExhaust && idx >= dataLength {
		return idx, true
	}

	currentIdx := idx
	if c.mode == CacheModeRotation {
		currentIdx = idx % dataLength
		c.indexes[key] = (currentIdx + 1) % dataLength
	} else {
		c.indexes[key] = idx + 1
	}

	return currentIdx, false
}

// Reset clears positions. An empty consumer clears everything; otherwise only
// keys for that consumer are removed. Returns the number of keys removed.
func (c *IndexCache) Reset(consumer string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if consumer == "" {
		count := len(c.indexes)
		c.indexes = make(map[string]int)
		return count
	}

	suffix := "/" + consumer
	count := 0
	for k := range c.indexes {
		if strings.HasSuffix(k, suffix) && len(k) > len(suffix) {
			delete(c.indexes, k)
			count++
		}
	}
	return count
}

// GetIndex returns the current index without advancing.
func (c *IndexCache) GetIndex(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes[key]
}
