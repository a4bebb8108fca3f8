// Package cache holds recently served search result pages keyed by a
// deterministic hash of the normalized query. The cache is best-effort:
// a failure anywhere degrades to a miss, never to an error.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"notedrop/internal/search"
)

// Namespace prefixes every search cache key so bulk invalidation can
// target search entries without touching unrelated keys.
const Namespace = "search:"

// Key derives the cache key for a query. Params are normalized first
// and serialized in a fixed field order, so the same logical query maps
// to the same key regardless of how the caller presented it.
func Key(p search.Params) string {
	p = p.Normalize()
	payload := fmt.Sprintf("kw=%s|cat=%s|sub=%s|typ=%s|year=%d|page=%d|size=%d|fuzzy=%t",
		p.Keyword, p.Category, p.Subject, p.DocType, p.Year, p.Page, p.Size, p.Fuzzy)
	sum := sha256.Sum256([]byte(payload))
	return Namespace + hex.EncodeToString(sum[:])
}

// SearchCache is a TTL key-value cache for serialized result pages.
type SearchCache struct {
	store *gocache.Cache
	ttl   time.Duration
}

// New creates a cache with the given entry TTL.
func New(ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SearchCache{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Get returns the cached value for key, or a miss.
func (c *SearchCache) Get(key string) ([]byte, bool) {
	v, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return b, true
}

// Set stores a value under key with the configured TTL.
func (c *SearchCache) Set(key string, value []byte) {
	c.store.Set(key, value, c.ttl)
}

// Invalidate removes every key matching the glob pattern and reports
// how many entries were dropped. Used for the coarse wipe after any
// mutation that could change search results.
func (c *SearchCache) Invalidate(pattern string) int {
	dropped := 0
	for key := range c.store.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			c.store.Delete(key)
			dropped++
		}
	}
	return dropped
}

// InvalidateSearches wipes every cached search page.
func (c *SearchCache) InvalidateSearches() int {
	return c.Invalidate(Namespace + "*")
}
