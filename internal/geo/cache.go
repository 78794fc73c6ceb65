package geo

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/htpot/collector/internal/eventschema"
)

// localCache is the L1 in-process cache. Positive and negative entries carry
// different TTLs, so they live in two separate bounded LRUs rather than one
// cache with per-entry TTL.
type localCache struct {
	mu       sync.Mutex
	positive *lru.LRU[string, eventschema.GeoFields]
	negative *lru.LRU[string, eventschema.GeoFields]
}

func newLocalCache(size int, positiveTTL, negativeTTL time.Duration) *localCache {
	if size <= 0 {
		size = 50_000
	}
	return &localCache{
		positive: lru.NewLRU[string, eventschema.GeoFields](size, nil, positiveTTL),
		negative: lru.NewLRU[string, eventschema.GeoFields](size, nil, negativeTTL),
	}
}

func (c *localCache) get(addr string) (eventschema.GeoFields, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.positive.Get(addr); ok {
		return v, true
	}
	if v, ok := c.negative.Get(addr); ok {
		return v, true
	}
	return eventschema.GeoFields{}, false
}

func (c *localCache) put(addr string, gf eventschema.GeoFields) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gf.Status == eventschema.GeoStatusResolved {
		c.positive.Add(addr, gf)
		return
	}
	c.negative.Add(addr, gf)
}

func (c *localCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positive.Len() + c.negative.Len()
}
