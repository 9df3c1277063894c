// Package cache holds the in-memory TTL cache for per-source snapshots.
// The cache is an injected component owned by the fetch layer, never a
// package-level singleton, so tests and multi-tenant deployments get
// isolated instances.
package cache

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// Entry is one cached snapshot. Expired entries are kept until the next
// Stats sweep so they remain available for stale-on-error fallback.
type Entry struct {
	Data      *model.PartialSnapshot
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Stats reports cache occupancy.
type Stats struct {
	TotalEntries  int `json:"total_entries"`
	ActiveEntries int `json:"active_entries"`
}

// SnapshotCache maps a source key ("<service_type>:<integration_id>") to its
// most recent snapshot. At most one live entry exists per key.
type SnapshotCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a snapshot cache with the given TTL.
func New(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (c *SnapshotCache) WithNow(now func() time.Time) *SnapshotCache {
	c.nowFunc = now
	return c
}

// Get returns the cached snapshot for key if it exists and has not expired.
func (c *SnapshotCache) Get(key string) (*model.PartialSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.nowFunc().After(e.ExpiresAt) {
		return nil, false
	}
	return e.Data, true
}

// GetStale returns the cached snapshot regardless of expiry. Used for the
// stale-on-error and rate-limited fallback paths.
func (c *SnapshotCache) GetStale(key string) (*model.PartialSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// Put stores a snapshot for key, replacing any previous entry.
func (c *SnapshotCache) Put(key string, snap *model.PartialSnapshot) {
	now := c.nowFunc()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Data:      snap,
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Invalidate removes all entries whose key starts with prefix and returns
// the number removed. Called when a webhook reports new data for a service,
// forcing the next fetch to go to network.
func (c *SnapshotCache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Info("snapshot cache invalidated",
			zap.String("prefix", prefix),
			zap.Int("entries_removed", removed),
		)
	}
	return removed
}

// Stats returns total and non-expired entry counts, evicting expired
// entries as a side effect (lazy GC).
func (c *SnapshotCache) Stats() Stats {
	now := c.nowFunc()
	c.mu.Lock()
	defer c.mu.Unlock()

	total := len(c.entries)
	for key, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, key)
		}
	}
	return Stats{
		TotalEntries:  total,
		ActiveEntries: len(c.entries),
	}
}
