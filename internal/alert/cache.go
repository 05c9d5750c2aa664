package alert

import "sync"

// DedupCache remembers which fingerprints have already been alerted on.
// Entries never expire; Clear is the only way to forget them.
type DedupCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupCache creates an empty cache.
func NewDedupCache() *DedupCache {
	return &DedupCache{seen: make(map[string]struct{})}
}

// ShouldNotify records fingerprint and reports whether this was its first
// observation. Concurrent callers with the same fingerprint get exactly one
// true.
func (c *DedupCache) ShouldNotify(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[fingerprint]; ok {
		return false
	}
	c.seen[fingerprint] = struct{}{}
	return true
}

// Clear forgets every fingerprint and returns how many were dropped.
func (c *DedupCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.seen)
	c.seen = make(map[string]struct{})
	return n
}

// Len returns the number of remembered fingerprints.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
