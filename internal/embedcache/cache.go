package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries is the cache capacity used when none is configured
	DefaultMaxEntries = 10000

	// DefaultTTL is the entry lifetime used when none is configured
	DefaultTTL = 24 * time.Hour

	// evictFraction is the share of entries removed in one eviction pass
	evictFraction = 0.2
)

// entry holds a cached vector with its bookkeeping timestamps
type entry struct {
	vector     []float32
	insertedAt time.Time
	accessedAt time.Time
	seq        uint64 // Insertion sequence, tie-break when access times are equal
}

// Stats reports cache usage counters
type Stats struct {
	Entries     int
	MaxEntries  int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	TTL         time.Duration
}

// Cache is a bounded TTL cache mapping (text, model) fingerprints to
// embedding vectors with batch LRU eviction under capacity pressure
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
	ttl        time.Duration
	seq        uint64

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	// now is replaceable in tests
	now func() time.Time
}

// New creates a cache with the given capacity and entry TTL.
// Non-positive values fall back to defaults.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]*entry, maxEntries),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Fingerprint computes the deterministic cache key for (text, model)
func Fingerprint(text, model string) string {
	h := sha256.Sum256([]byte(text + "|" + model))
	return hex.EncodeToString(h[:])
}

// Get returns a copy of the cached vector for (text, model).
// Expired entries are treated as absent and removed lazily.
// A hit refreshes the entry's last-accessed time.
func (c *Cache) Get(text, model string) ([]float32, bool) {
	key := Fingerprint(text, model)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := c.now()
	if now.Sub(e.insertedAt) > c.ttl {
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.accessedAt = now
	c.hits++

	// Copy so caller mutations cannot corrupt the cached vector
	vec := make([]float32, len(e.vector))
	copy(vec, e.vector)
	return vec, true
}

// Put inserts or overwrites the vector for (text, model), evicting the
// least-recently-accessed ~20% of entries first if the cache is full
func (c *Cache) Put(text, model string, vector []float32) {
	key := Fingerprint(text, model)

	vec := make([]float32, len(vector))
	copy(vec, vector)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.vector = vec
		e.insertedAt = now
		e.accessedAt = now
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	c.seq++
	c.entries[key] = &entry{
		vector:     vec,
		insertedAt: now,
		accessedAt: now,
		seq:        c.seq,
	}
}

// evictLocked removes the least-recently-accessed evictFraction of entries.
// Ties on access time fall back to insertion order (older sequence first).
// Caller must hold c.mu.
func (c *Cache) evictLocked() {
	count := int(math.Ceil(float64(c.maxEntries) * evictFraction))
	if count < 1 {
		count = 1
	}
	if count > len(c.entries) {
		count = len(c.entries)
	}

	type victim struct {
		key string
		e   *entry
	}
	victims := make([]victim, 0, len(c.entries))
	for k, e := range c.entries {
		victims = append(victims, victim{key: k, e: e})
	}

	sort.Slice(victims, func(i, j int) bool {
		if victims[i].e.accessedAt.Equal(victims[j].e.accessedAt) {
			return victims[i].e.seq < victims[j].e.seq
		}
		return victims[i].e.accessedAt.Before(victims[j].e.accessedAt)
	})

	for i := 0; i < count; i++ {
		delete(c.entries, victims[i].key)
		c.evictions++
	}
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry, c.maxEntries)
}

// Len returns the current number of entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of current usage counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:     len(c.entries),
		MaxEntries:  c.maxEntries,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		TTL:         c.ttl,
	}
}
