package embedder

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ttlCache is a content-keyed LRU cache of (text -> vector) with a fixed
// per-entry expiration. A non-positive size is treated as 1 and a
// non-positive TTL as 24 hours.
type ttlCache struct {
	lru *expirable.LRU[string, []float32]
}

func newTTLCache(maxItems int, ttl time.Duration) *ttlCache {
	if maxItems <= 0 {
		maxItems = 1
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ttlCache{lru: expirable.NewLRU[string, []float32](maxItems, nil, ttl)}
}

func (c *ttlCache) get(text string) ([]float32, bool) {
	return c.lru.Get(cacheKey(text))
}

func (c *ttlCache) put(text string, vec []float32) {
	c.lru.Add(cacheKey(text), vec)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
