package service

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/warden-hq/warden/internal/domain/policy"
)

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key        uint64
	resolution policy.Resolution
	prev       *lruEntry
	next       *lruEntry
}

// resultCache provides bounded LRU caching for resolution results.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type resultCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// newResultCache creates an LRU cache with the given max size.
func newResultCache(maxSize int) *resultCache {
	return &resultCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached resolution. On hit, the entry is promoted to the
// head (most recently used).
func (c *resultCache) Get(key uint64) (policy.Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.resolution, true
	}
	return policy.Resolution{}, false
}

// Put stores a resolution. If at capacity, the least recently used entry is
// evicted.
func (c *resultCache) Put(key uint64, res policy.Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.resolution = res
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &lruEntry{key: key, resolution: res}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called on policy reload.
func (c *resultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

// Size returns the current cache size.
func (c *resultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *resultCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *resultCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *resultCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *resultCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// computeCacheKey generates a hash over everything the resolution depends on:
// the snapshot generation, the role identity and grant set, the
// resource/capability pair, the concrete action fields, and the request
// params (JSON for determinism). Folding the generation in fences off
// entries computed against a superseded snapshot: a Put racing a reload
// lands under a key no post-reload lookup will ever compute. Grants are
// hashed sorted so equal grant sets hash equally regardless of store order.
func computeCacheKey(gen uint64, roleID string, roleCaps []string, req policy.RequestContext) uint64 {
	h := xxhash.New()
	sep := []byte{0}

	var genBuf [8]byte
	binary.LittleEndian.PutUint64(genBuf[:], gen)
	_, _ = h.Write(genBuf[:])

	_, _ = h.WriteString(roleID)
	_, _ = h.Write(sep)
	caps := append([]string(nil), roleCaps...)
	sort.Strings(caps)
	for _, c := range caps {
		_, _ = h.WriteString(c)
		_, _ = h.Write(sep)
	}
	_, _ = h.WriteString(req.Capability)
	_, _ = h.Write(sep)
	_, _ = h.WriteString(req.Resource)
	_, _ = h.Write(sep)
	_, _ = h.WriteString(req.Command)
	_, _ = h.Write(sep)
	_, _ = h.WriteString(req.Path)
	_, _ = h.Write(sep)
	_, _ = h.WriteString(req.Domain)
	_, _ = h.Write(sep)
	_, _ = h.WriteString(req.URL)
	_, _ = h.Write(sep)

	if len(req.Params) > 0 {
		paramsJSON, _ := json.Marshal(req.Params)
		_, _ = h.Write(paramsJSON)
	}

	return h.Sum64()
}
