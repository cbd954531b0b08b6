// Package cache memoizes parse results by content hash. A Cache is owned by
// its caller and passed in explicitly; there is no package-level instance.
package cache

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
)

// DefaultMaxEntries bounds a cache created with New(0).
const DefaultMaxEntries = 256

// Key identifies a parse result: the hash of the parse kind and the content.
type Key [32]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:8])
}

// KeyOf hashes content under a kind label, so the same text parsed two
// different ways gets two keys.
func KeyOf(kind, content string) Key {
	h := blake3.New()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(content))
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Stats counts cache lookups.
type Stats struct {
	Hits    int
	Misses  int
	Entries int
}

// Cache is a bounded, concurrency-safe map from Key to parse result.
// Cached values are shared and must be treated as read-only.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]any
	max     int
	hits    int
	misses  int
}

// New returns a cache holding at most maxEntries results.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{entries: make(map[Key]any), max: maxEntries}
}

// Get returns the cached value for k.
func (c *Cache) Get(k Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Put stores v under k, evicting an arbitrary entry when full.
func (c *Cache) Put(k Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[k]; !ok && len(c.entries) >= c.max {
		for old := range c.entries {
			delete(c.entries, old)
			break
		}
	}
	c.entries[k] = v
}

// Invalidate drops one entry.
func (c *Cache) Invalidate(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, k)
}

// Reset drops every entry and zeroes the counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]any)
	c.hits, c.misses = 0, 0
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// Memo returns the cached result of parsing content as kind, calling parse on
// a miss. A nil cache always calls parse.
func Memo[T any](c *Cache, kind, content string, parse func() T) T {
	if c == nil {
		return parse()
	}
	k := KeyOf(kind, content)
	if v, ok := c.Get(k); ok {
		if t, ok := v.(T); ok {
			return t
		}
	}
	t := parse()
	c.Put(k, t)
	return t
}
