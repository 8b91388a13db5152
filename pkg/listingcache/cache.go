// Package listingcache provides an in-memory LRU cache of bucket listings
// with stale-while-revalidate support. Optimistic local mutations (a file
// just uploaded or deleted) are tracked with a per-prefix mutation counter
// so background refreshes can be merged without hiding fresh local changes.
package listingcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/s3desk/s3desk/pkg/logging"
	"github.com/s3desk/s3desk/pkg/objectstore"
)

// Listing is one cached prefix listing.
type Listing struct {
	Prefix          string
	Entries         []objectstore.Item
	FetchedAt       time.Time
	Dirty           bool
	MutationCounter int
}

type cacheEntry struct {
	listing Listing
	lruElem *list.Element
}

// Cache is a thread-safe, size-bounded LRU of prefix listings. All methods
// take one coarse lock; every operation is bounded by the size of a single
// listing so contention is not a concern.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lru     *list.List // front = most recently used; values are prefix strings

	maxEntries     int
	staleThreshold time.Duration

	now    func() time.Time
	logger logging.Interface
}

// New creates a cache with the given capacity and staleness threshold.
func New(config *Config, logger logging.Interface) *Cache {
	return &Cache{
		entries:        make(map[string]*cacheEntry),
		lru:            list.New(),
		maxEntries:     config.MaxEntries,
		staleThreshold: config.StaleThreshold,
		now:            time.Now,
		logger:         logger,
	}
}

// Get returns the cached listing for a prefix and promotes it to most
// recently used. The second return is false on a miss. The returned listing
// is a snapshot; mutating its entries does not affect the cache.
func (c *Cache) Get(prefix string) (Listing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[prefix]
	if !ok {
		return Listing{}, false
	}
	c.lru.MoveToFront(entry.lruElem)
	return snapshot(entry.listing), true
}

// Put replaces a prefix's entries wholesale after a ground-truth fetch.
// The dirty flag is cleared; the mutation counter is preserved since it is
// a lifetime counter, not a per-fetch one.
func (c *Cache) Put(prefix string, entries []objectstore.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(prefix, entries, false)
}

// Invalidate removes a single prefix and reports whether it was cached.
func (c *Cache) Invalidate(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[prefix]
	if !ok {
		return false
	}
	c.lru.Remove(entry.lruElem)
	delete(c.entries, prefix)
	return true
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lru.Init()
}

// IsStale reports whether a prefix needs refreshing: true when missing or
// when the last fetch is older than the staleness threshold.
func (c *Cache) IsStale(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[prefix]
	if !ok {
		return true
	}
	return c.now().Sub(entry.listing.FetchedAt) > c.staleThreshold
}

// ApplyMutation edits a live cached listing in place, marking it dirty and
// bumping its mutation counter. Returns false without applying if the prefix
// is not cached; callers must not assume success.
func (c *Cache) ApplyMutation(prefix string, mutate func(entries []objectstore.Item) []objectstore.Item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[prefix]
	if !ok {
		return false
	}

	entry.listing.Entries = mutate(entry.listing.Entries)
	entry.listing.Dirty = true
	entry.listing.MutationCounter++
	return true
}

// MutationCounter returns a prefix's current mutation counter, 0 if absent.
func (c *Cache) MutationCounter(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[prefix]
	if !ok {
		return 0
	}
	return entry.listing.MutationCounter
}

// SafeRevalidate merges the result of a background fetch that started when
// the prefix's mutation counter was counterAtFetchStart.
//
// If nothing mutated the listing while the fetch was in flight the server
// result replaces the cached entries wholesale. Otherwise optimistic entries
// (cached keys the server does not know yet) are kept on top of the server
// result so a just-uploaded file does not vanish from the view. Entries the
// server removed are dropped since serverEntries is the base truth, which
// can transiently resurrect a concurrent field-level edit; accepted as a
// best-effort merge.
func (c *Cache) SafeRevalidate(prefix string, serverEntries []objectstore.Item, counterAtFetchStart int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[prefix]
	if !ok {
		// Cleared while the fetch was in flight; the server result becomes
		// a fresh entry.
		c.storeLocked(prefix, serverEntries, false)
		return true
	}

	if entry.listing.MutationCounter == counterAtFetchStart {
		entry.listing.Entries = copyEntries(serverEntries)
		entry.listing.Dirty = false
		entry.listing.FetchedAt = c.now()
		c.lru.MoveToFront(entry.lruElem)
		return true
	}

	serverKeys := make(map[string]struct{}, len(serverEntries))
	for _, e := range serverEntries {
		serverKeys[e.Key] = struct{}{}
	}

	var optimistic []objectstore.Item
	for _, e := range entry.listing.Entries {
		if _, known := serverKeys[e.Key]; !known {
			optimistic = append(optimistic, e)
		}
	}

	merged := make([]objectstore.Item, 0, len(serverEntries)+len(optimistic))
	merged = append(merged, copyEntries(serverEntries)...)
	merged = append(merged, optimistic...)

	entry.listing.Entries = merged
	entry.listing.Dirty = len(optimistic) > 0
	entry.listing.FetchedAt = c.now()
	c.lru.MoveToFront(entry.lruElem)

	c.logger.Debugf("revalidate merged %d server entries with %d optimistic for prefix %q",
		len(serverEntries), len(optimistic), prefix)
	return true
}

// Len returns the number of cached prefixes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// storeLocked inserts or replaces a prefix's listing and runs eviction.
// Caller holds the lock.
func (c *Cache) storeLocked(prefix string, entries []objectstore.Item, dirty bool) {
	if entry, ok := c.entries[prefix]; ok {
		entry.listing.Entries = copyEntries(entries)
		entry.listing.FetchedAt = c.now()
		entry.listing.Dirty = dirty
		c.lru.MoveToFront(entry.lruElem)
		return
	}

	entry := &cacheEntry{
		listing: Listing{
			Prefix:    prefix,
			Entries:   copyEntries(entries),
			FetchedAt: c.now(),
			Dirty:     dirty,
		},
	}
	entry.lruElem = c.lru.PushFront(prefix)
	c.entries[prefix] = entry

	for len(c.entries) > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(string)
		c.lru.Remove(oldest)
		delete(c.entries, evicted)
		c.logger.Debugf("evicted listing for prefix %q", evicted)
	}
}

func snapshot(l Listing) Listing {
	l.Entries = copyEntries(l.Entries)
	return l
}

func copyEntries(entries []objectstore.Item) []objectstore.Item {
	out := make([]objectstore.Item, len(entries))
	copy(out, entries)
	return out
}
