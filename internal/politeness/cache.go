package politeness

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/northfleet/podcrawl/internal/domain"
)

// DefaultCacheSize is the minimum LRU size spec.md §4.3 requires
// ("≥10^5 entries") for the manual-exclusion / domain-record cache.
const DefaultCacheSize = 100_000

// recordCache is the in-process front-cache over a pod's domain
// records, bounding RAM to O(cache_size) regardless of crawl length
// (spec.md §4.3 "Caching invariants").
type recordCache struct {
	lru *lru.Cache[string, domain.Record]
}

func newRecordCache(size int) (*recordCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, domain.Record](size)
	if err != nil {
		return nil, err
	}
	return &recordCache{lru: c}, nil
}

func (c *recordCache) get(d string) (domain.Record, bool) {
	return c.lru.Get(d)
}

func (c *recordCache) set(d string, rec domain.Record) {
	c.lru.Add(d, rec)
}

func (c *recordCache) invalidate(d string) {
	c.lru.Remove(d)
}
