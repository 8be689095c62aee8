package agents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"buyside-ai/models"
	"buyside-ai/observability"
)

// ResultCache stores finished analyses keyed by CacheKey
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.AnalysisResult, bool, error)
	Set(ctx context.Context, key string, result *models.AnalysisResult) error
}

// CacheKey identifies an analysis by its inputs: the ticker set (order does not
// matter), the date range and the language.
func CacheKey(tickers []string, start, end time.Time, lang models.Language) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte("|" + start.Format(time.DateOnly) + "|" + end.Format(time.DateOnly) + "|" + string(lang)))
	return hex.EncodeToString(h.Sum(nil))
}

type cachedResult struct {
	result   *models.AnalysisResult
	storedAt time.Time
}

// MemoryResultCache provides TTL-based in-process caching of analysis results.
// A TTL of 0 disables caching.
type MemoryResultCache struct {
	mu      sync.RWMutex
	entries map[string]cachedResult
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryResultCache creates a new MemoryResultCache with the specified TTL
func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	return &MemoryResultCache{
		entries: make(map[string]cachedResult),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached result and whether it is still within TTL
func (c *MemoryResultCache) Get(ctx context.Context, key string) (*models.AnalysisResult, bool, error) {
	if c.ttl <= 0 {
		return nil, false, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		observability.GetMetrics().RecordCacheMiss("memory")
		return nil, false, nil
	}
	observability.GetMetrics().RecordCacheHit("memory")
	return entry.result, true, nil
}

// Set stores a result and drops expired entries
func (c *MemoryResultCache) Set(ctx context.Context, key string, result *models.AnalysisResult) error {
	if c.ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cachedResult{result: result, storedAt: now}
	return nil
}

// Invalidate clears the cache
func (c *MemoryResultCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedResult)
}

// TTL returns the cache's time-to-live duration
func (c *MemoryResultCache) TTL() time.Duration {
	return c.ttl
}

// Len returns the number of stored entries, expired or not
func (c *MemoryResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
