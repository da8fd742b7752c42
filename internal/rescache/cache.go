// Package rescache caches per-source search results so repeated queries
// within the TTL window skip the network entirely. Entries are scoped to one
// (source, query fingerprint) pair; a cached source counts as a success in
// the dispatch outcome.
package rescache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/carlookout/server/internal/domain/listings"
)

// Fingerprint derives a deterministic cache key component from a query and
// its filters. Logically identical searches fingerprint identically
// regardless of filter construction order.
func Fingerprint(query string, filters listings.FilterSet) string {
	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	b.WriteString("|")
	b.WriteString(filters.Fingerprint())

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	listings  []listings.RawListing
	expiresAt time.Time
}

// Cache is an in-memory TTL cache keyed by source and query fingerprint.
// Expired entries are evicted lazily on access; Purge sweeps the rest and is
// meant to be driven by a ticker in the serve loop.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time // overridable in tests
}

const DefaultTTL = 5 * time.Minute

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached listings for a source and fingerprint, or false on
// a miss or an expired entry.
func (c *Cache) Get(sourceID, fingerprint string) ([]listings.RawListing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sourceID + ":" + fingerprint
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.listings, true
}

// Put stores a source's listings under the fingerprint for the cache TTL.
// Callers must not mutate the slice after handing it over.
func (c *Cache) Put(sourceID, fingerprint string, results []listings.RawListing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[sourceID+":"+fingerprint] = entry{
		listings:  results,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Purge removes every expired entry and returns how many were evicted.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live plus not-yet-swept entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
