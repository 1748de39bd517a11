// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores provider responses keyed by (provider, query
// signature) with a TTL that varies by data kind. Expiry is checked at
// read time; there is no background eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/topic-scout/internal/metrics"
	"github.com/pdiddy/topic-scout/pkg/types"
)

// Key derives the cache key from the provider and normalized query
// parameters. Queries differing only in case or surrounding whitespace
// hash to the same key.
func Key(provider string, kind types.DataKind, query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	h := sha256.Sum256([]byte(provider + "\x00" + string(kind) + "\x00" + normalized))
	return hex.EncodeToString(h[:])
}

type entry struct {
	batch     []types.RawResult
	expiresAt time.Time
}

// Cache is a read-many/write-many in-memory TTL cache. Concurrent puts
// for the same key are last-writer-wins; values are derived, not
// authoritative, so that is acceptable.
type Cache struct {
	ttls    types.CacheConfig
	metrics *metrics.Manager

	mu      sync.RWMutex
	entries map[string]entry

	// now is stubbed in tests to exercise expiry without sleeping.
	now func() time.Time
}

// New builds an empty cache with per-kind TTLs from cfg.
func New(cfg types.CacheConfig, m *metrics.Manager) *Cache {
	return &Cache{
		ttls:    cfg,
		metrics: m,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached batch for (provider, kind, query) if present and
// unexpired. An expired entry is removed and never returned.
func (c *Cache) Get(provider string, kind types.DataKind, query string) ([]types.RawResult, bool) {
	key := Key(provider, kind, query)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.metrics.CacheMiss(provider)
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have refreshed it.
		if cur, still := c.entries[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.metrics.CacheMiss(provider)
		return nil, false
	}

	c.metrics.CacheHit(provider)
	return e.batch, true
}

// Put stores batch under (provider, kind, query) with the kind's TTL.
func (c *Cache) Put(provider string, kind types.DataKind, query string, batch []types.RawResult) {
	key := Key(provider, kind, query)
	c.mu.Lock()
	c.entries[key] = entry{batch: batch, expiresAt: c.now().Add(c.ttls.TTLFor(kind))}
	c.mu.Unlock()
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
