package ingest

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// recentHashCache is a small in-process LRU of content hashes that this
// process recently wrote (or found already stored). It never replaces the
// store's unique index as the dedup source of truth — it only lets a hot
// retry storm skip a redundant write attempt for such a hash.
type recentHashCache struct {
	lru *lru.Cache[string, struct{}]
}

func newRecentHashCache(size int) *recentHashCache {
	if size <= 0 {
		size = 8192
	}
	c, _ := lru.New[string, struct{}](size)
	return &recentHashCache{lru: c}
}

func (c *recentHashCache) seenRecently(hash string) bool {
	_, ok := c.lru.Get(hash)
	return ok
}

func (c *recentHashCache) remember(hash string) {
	c.lru.Add(hash, struct{}{})
}
