package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"sync"
	"time"

	"nutriguide/internal/adapter/analyzer"
	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

// QueryCache is an LRU cache with TTL for retrieval results. Entries are
// tagged with the index generation they were computed against and are
// dropped once the index changes.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	results   []domain.QueryResult
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, topK int) string {
	hash := sha256.Sum256([]byte(strconv.Itoa(topK) + "\x00" + analyzer.Normalize(query)))
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(query string, topK int, gen uint64) ([]domain.QueryResult, bool) {
	c.mu.RLock()
	key := cacheKey(query, topK)
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != gen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return cloneResults(entry.results), true
}

func (c *QueryCache) Put(query string, topK int, gen uint64, results []domain.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK)
	entry := &cacheEntry{
		results:   cloneResults(results),
		timestamp: time.Now(),
		indexGen:  gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// cloneResults gives each caller its own copy of a cached entry.
func cloneResults(results []domain.QueryResult) []domain.QueryResult {
	if results == nil {
		return nil
	}
	out := make([]domain.QueryResult, len(results))
	for i, r := range results {
		r.Document.Embedding = slices.Clone(r.Document.Embedding)
		out[i] = r
	}
	return out
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Generationer reports the current index generation.
type Generationer interface {
	Generation() uint64
}

// CachedRetriever fronts a retriever with a QueryCache.
type CachedRetriever struct {
	retriever port.Retriever
	index     Generationer
	cache     *QueryCache
}

func NewCachedRetriever(retriever port.Retriever, index Generationer, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		index:     index,
		cache:     cache,
	}
}

func (r *CachedRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.QueryResult, error) {
	gen := r.index.Generation()
	if results, hit := r.cache.Get(query, k, gen); hit {
		return results, nil
	}

	results, err := r.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	// only cache if the index did not change while we were searching
	if r.index.Generation() == gen {
		r.cache.Put(query, k, gen, results)
	}

	return results, nil
}
