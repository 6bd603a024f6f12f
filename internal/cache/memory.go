package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

// MemoryCache keeps results in an expiring LRU. Entries leave either when
// their own TTL passes or when the cache-wide TTL evicts them, whichever
// comes first.
type MemoryCache struct {
	lru    *lru.LRU[string, Entry]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a cache holding at most size entries, each for
// at most ttl. Zero values select DefaultSize and DefaultTTL.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{lru: lru.NewLRU[string, Entry](size, nil, ttl)}
}

// Get returns a copy of the cached records.
func (m *MemoryCache) Get(_ context.Context, key string) ([]diagnostics.Record, bool) {
	entry, ok := m.lru.Get(key)
	if !ok || entry.IsExpired() {
		if ok {
			m.lru.Remove(key)
		}
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return cloneRecords(entry.Records), true
}

// Set stores a copy of records.
func (m *MemoryCache) Set(_ context.Context, key string, records []diagnostics.Record, ttl time.Duration) {
	m.lru.Add(key, newEntry(records, ttl))
}

// Delete removes a value from the cache.
func (m *MemoryCache) Delete(_ context.Context, key string) {
	m.lru.Remove(key)
}

// Clear removes all values from the cache.
func (m *MemoryCache) Clear(_ context.Context) {
	m.lru.Purge()
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

// Stats implements StatsReporter.
func (m *MemoryCache) Stats(_ context.Context) Stats {
	return Stats{Entries: m.lru.Len(), Hits: m.hits.Load(), Misses: m.misses.Load()}
}

var (
	_ Cache         = (*MemoryCache)(nil)
	_ StatsReporter = (*MemoryCache)(nil)
)
