package flip

import (
	"sync"
	"sync/atomic"
	"time"
)

type seenEntry struct {
	id int64
	at time.Time
}

// DedupCache remembers ids of flips already committed for dispatch.
//
// Membership lives in a sync.Map so TryAdd is a single LoadOrStore. A
// mutex guarded insertion FIFO lets Prune stop at the first entry that is
// young enough, so a pruning pass costs only the entries it removes.
type DedupCache struct {
	ids       sync.Map
	size      atomic.Int64
	mu        sync.Mutex
	fifo      []seenEntry
	head      int
	threshold int
	maxAge    time.Duration
}

// NewDedupCache prunes entries older than maxAge once more than threshold
// ids are stored.
func NewDedupCache(threshold int, maxAge time.Duration) *DedupCache {
	return &DedupCache{threshold: threshold, maxAge: maxAge}
}

// Contains reports whether id was already committed.
func (c *DedupCache) Contains(id int64) bool {
	_, ok := c.ids.Load(id)
	return ok
}

// TryAdd commits id. Exactly one concurrent caller per id gets true.
func (c *DedupCache) TryAdd(id int64, now time.Time) bool {
	if _, loaded := c.ids.LoadOrStore(id, now); loaded {
		return false
	}
	c.size.Add(1)
	c.mu.Lock()
	c.fifo = append(c.fifo, seenEntry{id: id, at: now})
	c.mu.Unlock()
	return true
}

// Len returns the number of stored ids.
func (c *DedupCache) Len() int { return int(c.size.Load()) }

// Prune removes expired ids when the cache is above its threshold and
// returns how many were removed. Recent ids are always kept.
func (c *DedupCache) Prune(now time.Time) int {
	if c.Len() <= c.threshold {
		return 0
	}
	cutoff := now.Add(-c.maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for c.head < len(c.fifo) && c.fifo[c.head].at.Before(cutoff) {
		c.ids.Delete(c.fifo[c.head].id)
		c.head++
		removed++
	}
	c.size.Add(int64(-removed))
	// compact once the dead prefix dominates so the copy stays amortised
	if c.head > 0 && c.head*2 >= len(c.fifo) {
		n := copy(c.fifo, c.fifo[c.head:])
		c.fifo = c.fifo[:n]
		c.head = 0
	}
	return removed
}
