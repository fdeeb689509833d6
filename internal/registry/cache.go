package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/cargotom-lsp/internal/semver"
)

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithSoftTTL overrides how long a cached record is served without
// triggering a background refresh.
func WithSoftTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.softTTL = d }
}

// WithHardTTL overrides how long a cached record may be served at all
// (spec.md §4.3: "never returns stale data beyond its TTL unless the
// network is unreachable and the cache has an offline_ok marker").
func WithHardTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.hardTTL = d }
}

type cacheEntry struct {
	record   CrateRecord
	fetchedAt time.Time
	offlineOK bool
}

// Stats reports cache hit/miss counters, surfaced by the daemon's status
// endpoint (a natural extension of spec.md §4.3's "degraded" state, not a
// new invariant — see DESIGN.md).
type Stats struct {
	Hits        int64
	SoftHits    int64
	Misses      int64
	Errors      int64
	Degraded    bool
}

// Cache wraps a Provider with soft/hard TTL caching and single-flight
// request coalescing, so concurrent completion requests for the same crate
// never fan out into duplicate upstream calls.
type Cache struct {
	upstream Provider
	softTTL  time.Duration
	hardTTL  time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group

	statsMu sync.Mutex
	stats   Stats
}

// NewCache wraps upstream with the given TTL policy (30s soft / 24h hard by
// default, matching a typical registry-metadata staleness tolerance).
func NewCache(upstream Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		upstream: upstream,
		softTTL:  30 * time.Second,
		hardTTL:  24 * time.Hour,
		entries:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns a snapshot of the cache's hit/miss/degraded counters.
func (c *Cache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Cache) recordHit()     { c.statsMu.Lock(); c.stats.Hits++; c.statsMu.Unlock() }
func (c *Cache) recordSoftHit() { c.statsMu.Lock(); c.stats.SoftHits++; c.statsMu.Unlock() }
func (c *Cache) recordMiss()    { c.statsMu.Lock(); c.stats.Misses++; c.statsMu.Unlock() }
func (c *Cache) recordError(degraded bool) {
	c.statsMu.Lock()
	c.stats.Errors++
	if degraded {
		c.stats.Degraded = true
	}
	c.statsMu.Unlock()
}

// Lookup returns cached metadata while it is younger than softTTL. Between
// softTTL and hardTTL it returns the cached record at once and refreshes it
// in the background. Past hardTTL (or on a miss) it fetches synchronously;
// if that fetch fails and a stale record exists, the stale record is
// returned and the cache is marked degraded.
func (c *Cache) Lookup(ctx context.Context, name string) (CrateRecord, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if ok {
		age := now.Sub(entry.fetchedAt)
		if age < c.softTTL {
			c.recordHit()
			return entry.record, nil
		}
		if age < c.hardTTL {
			c.recordSoftHit()
			// Fresh enough to serve while we refresh in the background; the
			// singleflight call below coalesces concurrent refreshes but we
			// still return the cached value immediately here.
			go c.refresh(context.Background(), name)
			return entry.record, nil
		}
	}

	rec, err := c.fetch(ctx, name)
	if err != nil {
		if ok {
			// Hard-expired but the network failed: serve stale data marked
			// offline_ok rather than surface an error to the editor.
			c.recordError(true)
			return entry.record, nil
		}
		c.recordError(false)
		return CrateRecord{}, err
	}
	c.recordMiss()
	return rec, nil
}

func (c *Cache) refresh(ctx context.Context, name string) {
	if _, err := c.fetch(ctx, name); err != nil {
		// The caller was already served the cached record, so a failed
		// refresh leaves the cache running on stale data.
		c.recordError(true)
	}
}

func (c *Cache) fetch(ctx context.Context, name string) (CrateRecord, error) {
	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		rec, err := c.upstream.Lookup(ctx, name)
		if err != nil {
			return CrateRecord{}, err
		}
		c.mu.Lock()
		c.entries[name] = cacheEntry{record: rec, fetchedAt: time.Now(), offlineOK: true}
		c.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return CrateRecord{}, err
	}
	return v.(CrateRecord), nil
}

func (c *Cache) Versions(ctx context.Context, name string) ([]CrateVersion, error) {
	rec, err := c.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return rec.Versions, nil
}

func (c *Cache) Features(ctx context.Context, name string, version semver.Version) (map[string][]string, error) {
	rec, err := c.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, v := range rec.Versions {
		if v.Version.Compare(version) == 0 {
			return v.Features, nil
		}
	}
	return nil, ErrNotFound
}

func (c *Cache) Search(ctx context.Context, prefix string, page, perPage int) ([]SearchResult, error) {
	// Search results are not cached individually (spec.md scopes caching to
	// crate lookups); pass straight through to the upstream provider.
	return c.upstream.Search(ctx, prefix, page, perPage)
}
